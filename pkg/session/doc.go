/*
Package session implements tree access and persistence orchestration.

It serializes mutations of the same classification tree, within a process through
reference-counted mutexes and across replicas through an optional distributed
locker, and persists each committed version through a TreeStore adapter.
*/
package session

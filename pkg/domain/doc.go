/*
Package domain contains the core data model of the classification engine.

It defines the split rules that divide an item population, the nodes and trees
that record the result of applying those rules, and the derived alluvial flows
that connect the leaves of two independently built trees. This package is kept
pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - ItemSet: a set of integer item IDs with JSON encoding as a sorted array.
  - SplitRule: a tagged union of Range, Pattern and Expression rules.
  - SplitSpec: the declarative description a split rule is generated from.
  - Node / Tree: the classification tree, rooted at "root".
  - AlluvialFlow: a weighted edge between leaves of two trees.
*/
package domain

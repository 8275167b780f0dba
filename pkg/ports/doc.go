/*
Package ports defines the driven ports (interfaces) of the classification engine.

These interfaces decouple the tree builder from the systems that own the data
and the trees, so the same engine runs against an in-memory metric table, a
remote REST backend, a file directory or a Redis cluster.

# Key Interfaces

  - MetricGroupProvider: bins the item population by one metric at given thresholds.
  - MetricValueSource: returns raw metric values, used by percentile splits and bridges.
  - TreeStore: persists classification trees between mutations.
  - DistributedLocker: serializes mutations of one tree across processes.
*/
package ports

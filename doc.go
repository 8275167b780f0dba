/*
Package saevis builds classification trees over a population of items (for example,
sparse-autoencoder features) and projects flows between independently built trees.

# Concept

A tree starts as a single root holding every item selected by the provider's filter.
Stages expand a leaf into children using a split rule:

  - Range: one metric cut at ascending thresholds into contiguous bins.
  - Pattern: every high/low combination of several metrics.
  - Expression: ordered boolean conditions over metrics, first match wins, with a default.

Item membership never comes from evaluating rules item by item. The engine asks a
MetricGroupProvider to bin the population by one metric at a time and combines the
returned item sets with set algebra. Every child is therefore a subset of its parent.

Trees are immutable values: every mutation returns a new tree, and the Engine persists
it through a TreeStore while holding a per-tree lock.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/gnueaj/SAE-vis-sub000"
		"github.com/gnueaj/SAE-vis-sub000/pkg/adapters/memory"
		"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	)

	func main() {
		table, err := memory.LoadTable("features.csv")
		if err != nil {
			log.Fatal(err)
		}

		eng, err := saevis.New(saevis.WithProvider(table))
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		if _, err := eng.NewTree(ctx, "quality"); err != nil {
			log.Fatal(err)
		}

		tree, err := eng.AddStage(ctx, "quality", domain.RootID, domain.StageConfig{
			Category: "fuzz",
			Split:    domain.SplitSpec{Type: domain.SplitRange, Metric: "score_fuzz", Thresholds: []float64{0.3, 0.7}},
		})
		if err != nil {
			log.Fatal(err)
		}

		for _, leaf := range tree.Leaves() {
			fmt.Println(leaf.ID, leaf.ItemCount)
		}
	}
*/
package saevis

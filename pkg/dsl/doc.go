/*
Package dsl provides a fluent Go builder for classification plans: ordered lists of
stages that grow a tree one level at a time.

A plan is the programmatic twin of the "trees" section of a project file. Each stage
targets either one node or, when no node is named, every leaf that exists when the
stage runs.

Example usage:

	plan, err := dsl.New().
		Leaves().Category("quality").Range("score_fuzz", 0.3, 0.7).
		Leaves().Category("agreement").Flexible([]string{"score_fuzz", "score_detection"}, []float64{0.5, 0.5}).
		Build()
	if err != nil {
		log.Fatal(err)
	}

	tree, err := engine.Grow(ctx, "my-tree", plan)
*/
package dsl

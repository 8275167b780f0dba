/*
Package expr implements the boolean condition language used by expression split rules.

Conditions are kept as a small tagged AST: a Comparison of one metric against a
numeric value, combined with And, Or and Not. The AST is rendered to the display
form (e.g. "score_fuzz >= 0.5 && score_detection < 0.5") only at output
boundaries, and Parse accepts that same grammar back:

	expr   := or
	or     := and ("||" and)*
	and    := unary ("&&" unary)*
	unary  := "!" unary | "(" expr ")" | metric op number
	op     := ">=" | ">" | "<=" | "<"

Threshold edits are applied by rewriting Comparison values on the tree, never by
editing the rendered text.
*/
package expr

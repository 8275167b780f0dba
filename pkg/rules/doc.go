/*
Package rules turns declarative split specifications into concrete split rules.

Every generator is a pure function that returns the rule together with the
identifiers of the children it requires. Child identifiers are derived from the
parent's identifier so they stay unique across a tree:

	range      {parent}_{metric}_{i}
	flexible   {parent}_{pattern}       e.g. root_all_2_high, root_1_of_2_high_fuzz
	groups     {parent}_{group}         plus {parent}_others when coverage is partial
	bins       {parent}_{metric}_{i}
	overlap    {parent}_matched or {parent}_{g1+g2...}, plus {parent}_others
	expression {parent}_{branch}

Malformed input is reported as a *domain.ConfigError before any rule is built.
*/
package rules

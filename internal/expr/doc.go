// Package expr implements the restricted boolean language of rule `if:`
// clauses.
//
// GRAMMAR:
//
//	expr    = and { "||" and }
//	and     = cmp { "&&" cmp }
//	cmp     = operand [ ( "==" | "!=" | "=~" | "!~" ) operand ]
//	operand = variable | string | pattern | "null" | "(" expr ")"
//
// Variables are written $NAME or ${NAME}. Strings use double or single
// quotes and have no escapes. Patterns are /regex/flags with flags drawn
// from "i", "m" and "s".
//
// COERCION:
//
//   - an unset variable compares equal to "" and to null
//   - null compares equal only to unset variables
//   - when both sides parse as numbers they compare numerically
//   - a bare operand is true when it is set and non-empty
//   - the right side of =~ and !~ must be a pattern literal or a variable
//     holding one ("/.../flags")
//
// Node is a sealed interface: every AST type lives in this package, so
// evaluators can switch exhaustively.
package expr

package calc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const varsPlaceholder = "{{VARIABLES}}"

const promptTemplate = `You have been given an image with some mathematical expressions, equations, or graphical problems, and you need to solve them.
Note: Use the PEMDAS rule for solving mathematical expressions. PEMDAS stands for the Priority Order: Parentheses, Exponents, Multiplication and Division (from left to right), Addition and Subtraction (from left to right). Parentheses have the highest priority, followed by Exponents, then Multiplication and Division, and lastly Addition and Subtraction.
For example:
Q. 2 + 3 * 4
(3 * 4) => 12, 2 + 12 = 14.
Q. 2 + 3 + 5 * 4 - 8 / 2
5 * 4 => 20, 8 / 2 => 4, 2 + 3 => 5, 5 + 20 => 25, 25 - 4 => 21.
YOU CAN HAVE FIVE TYPES OF EQUATIONS/EXPRESSIONS IN THIS IMAGE, AND ONLY ONE CASE SHALL APPLY EVERY TIME. DO NOT MIX CASES.
Following are the cases:
1. Simple mathematical expressions like 2 + 2, 3 * 4, 5 / 6, 7 - 8, etc.: solve and return a LIST OF ONE DICT [{"expr": given expression, "result": calculated answer}]. Do not add an "assign" key.
2. Set of equations like x^2 + 2x + 1 = 0, 3y + 4x = 0, 5x^2 + 6y + 7 = 12, etc.: solve for every unknown and return a COMMA SEPARATED LIST OF DICTS, one per unknown, e.g. {"expr": "x", "result": 2, "assign": true} and {"expr": "y", "result": 5, "assign": true} when x is 2 and y is 5. Include as many dicts as there are variables.
3. Assigning values to variables like x = 4, y = 5, z = 6, etc.: keep the variable as "expr", the value as "result", and add "assign": true. Return one dict per assignment in a LIST OF DICTS.
4. Graphical math problems, which are word problems represented as drawings such as cars colliding, trigonometric problems, the Pythagorean theorem, adding runs from a cricket wagon wheel, etc. PAY CLOSE ATTENTION TO DIFFERENT COLORS FOR THESE PROBLEMS. Return a LIST OF ONE DICT [{"expr": symbolic restatement of the problem, "result": calculated answer}].
5. Abstract concepts a drawing might show, such as love, hate, jealousy, patriotism, or a historic reference to war, invention, discovery, quote, etc. Return a LIST OF ONE DICT where "expr" is a short explanation of the drawing and "result" is the abstract concept.

Analyze the equation or expression in this image and return the answer according to the given rules.
Make sure to use extra backslashes for escape characters like \f -> \\f, \n -> \\n, etc.
Here is a dictionary of user-assigned variables. If the given expression has any of these variables, substitute its actual value from this dictionary before solving: ` + varsPlaceholder + `.
DO NOT USE BACKTICKS OR MARKDOWN FORMATTING. DO NOT WRITE ANY TEXT OUTSIDE THE LIST.
PROPERLY QUOTE THE KEYS AND VALUES IN EVERY OBJECT WITH DOUBLE QUOTES, KEEP EVERY OBJECT FLAT, so the reply can be parsed directly by a strict JSON parser.`

// BuildPrompt renders the instruction template for vars. A nil map renders
// as an empty dictionary.
func BuildPrompt(vars Variables) string {
	return strings.Replace(promptTemplate, varsPlaceholder, renderVariables(vars), 1)
}

func renderVariables(vars Variables) string {
	// NaN, Inf and malformed json.Number values have no JSON form; only
	// those are rendered as quoted text.
	safe := make(Variables, len(vars))
	for k, v := range vars {
		if _, err := json.Marshal(v); err != nil {
			v = fmt.Sprint(v)
		}
		safe[k] = v
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(safe); err != nil {
		return "{}"
	}
	return strings.TrimSpace(buf.String())
}

package builtins

// Doc documents a builtin command.
type Doc struct {
	Name       string
	Parameters []string
	Doc        string
	Example    string
}

// Docs returns documentation for all builtin commands, sorted by name.
func Docs() []Doc {
	return builtinDocs
}

var builtinDocs = []Doc{
	{
		Name:       "add",
		Parameters: []string{"a", "b"},
		Doc:        "Output the sum of two numbers",
		Example:    "add 1 2;",
	},
	{
		Name:    "array",
		Doc:     "Collect the inputs into one array value",
		Example: "1, 2, 3 | array;",
	},
	{
		Name:    "bypass",
		Doc:     "Output the first input, or null when there is none",
		Example: "\"a\", \"b\" | bypass;",
	},
	{
		Name:    "concat",
		Doc:     "Join the text of the inputs into one string",
		Example: "\"id-\", 42 | concat;",
	},
	{
		Name:       "contains",
		Parameters: []string{"text", "substring"},
		Doc:        "Output true if text contains substring",
		Example:    "contains $line \"error\";",
	},
	{
		Name:    "count",
		Doc:     "Output the number of inputs",
		Example: "input | count;",
	},
	{
		Name:       "div",
		Parameters: []string{"a", "b"},
		Doc:        "Output a divided by b; integer division by zero fails",
		Example:    "div 7 2;",
	},
	{
		Name:    "elements",
		Doc:     "Output the next input on each call, then null once exhausted",
		Example: "let $e = input | elements;",
	},
	{
		Name:       "eq",
		Parameters: []string{"a", "b"},
		Doc:        "Output true if both values are structurally equal",
		Example:    "eq $x \"done\";",
	},
	{
		Name:       "fail",
		Parameters: []string{"message"},
		Doc:        "Abort the execution with message",
		Example:    "fail \"unexpected input\";",
	},
	{
		Name:       "join",
		Parameters: []string{"separator"},
		Doc:        "Join the text of the inputs with separator",
		Example:    "\"a\", \"b\" | join \",\";",
	},
	{
		Name:       "length",
		Parameters: []string{"value"},
		Doc:        "Output the element count of an array or the character count of a string",
		Example:    "length \"héllo\";",
	},
	{
		Name:       "lower",
		Parameters: []string{"text"},
		Doc:        "Output text in lower case",
		Example:    "lower \"MiXeD\";",
	},
	{
		Name:       "lt",
		Parameters: []string{"a", "b"},
		Doc:        "Output true if a is less than b; compares numbers or strings",
		Example:    "while lt $i 10 { $i = add $i 1; }",
	},
	{
		Name:       "match",
		Parameters: []string{"pattern", "text"},
		Doc:        "Output true if text contains a match of the regular expression pattern",
		Example:    "match \"^v[0-9]+$\" $tag;",
	},
	{
		Name:       "mul",
		Parameters: []string{"a", "b"},
		Doc:        "Output the product of two numbers",
		Example:    "mul 6 7;",
	},
	{
		Name:       "not",
		Parameters: []string{"value"},
		Doc:        "Output the negated truthiness of value",
		Example:    "not $done;",
	},
	{
		Name:    "print",
		Doc:     "Write the inputs on one line, separated by spaces",
		Example: "\"hello\", \"world\" | print;",
	},
	{
		Name:       "replace",
		Parameters: []string{"text", "old", "new"},
		Doc:        "Replace every occurrence of old in text with new",
		Example:    "replace $path \"/\" \"-\";",
	},
	{
		Name:       "split",
		Parameters: []string{"text", "separator"},
		Doc:        "Output the parts of text around each separator",
		Example:    "split \"a,b,c\" \",\" | count;",
	},
	{
		Name:       "spread",
		Parameters: []string{"array"},
		Doc:        "Output the elements of an array",
		Example:    "forEach $e in spread $items { }",
	},
	{
		Name:       "sub",
		Parameters: []string{"a", "b"},
		Doc:        "Output a minus b",
		Example:    "sub 10 3;",
	},
	{
		Name:       "trim",
		Parameters: []string{"text"},
		Doc:        "Remove leading and trailing white space",
		Example:    "trim \"  padded  \";",
	},
	{
		Name:       "upper",
		Parameters: []string{"text"},
		Doc:        "Output text in upper case",
		Example:    "upper \"shout\";",
	},
}

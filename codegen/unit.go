package codegen

// Unit is the code generated for one tree: the declaration of its
// prediction function and its definition.
type Unit struct {
	Tree        int
	Name        string
	Declaration string
	Definition  string
	Body        *Body
}

// File is a generated source file
type File struct {
	Name    string
	Content []byte
}

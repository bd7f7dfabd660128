// Package registry announces exported procedures to the host.
//
// Register derives the type text of a Go function, checks the function
// description against it and calls xlfRegister with the fixed ten
// arguments followed by one help string per parameter:
//
//	r, err := registry.Register(b, "", func(x, y float64) float64 { return x + y }, registry.Function{
//		Procedure: "xlAdd",
//		Name:      "ADD",
//		Arguments: []string{"x", "y"},
//		Category:  "Math",
//	})
//
// A Table keeps the registrations of one add-in so they can be looked up by
// procedure and withdrawn together with UnregisterAll.
package registry

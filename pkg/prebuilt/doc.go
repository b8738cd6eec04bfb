// Package prebuilt provides ready-made flowcanvas templates: the starter
// canvas, branching and routing examples. Each prebuilt returns a fresh
// *flowcanvas.Graph that passes document validation and can be loaded onto
// a Runtime or customised first.
package prebuilt

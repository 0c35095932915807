// Package compiler turns a CUE configuration file into an ir.Config.
//
// A configuration file holds a single babel struct:
//
//	babel: {
//		contexts: [["web", "de", "fr"], ["intranet", "intranet-de"]]
//		sync_slots: ["color", "teaser_image"]
//		schema: {
//			pagetitle: "string"
//			template:  "integer"
//		}
//	}
//
// CompileConfig checks the value against an embedded CUE schema, so typos in
// field names fail with a positioned CompileError. Validate then reports
// semantic problems (overlapping groups, unclassified field kinds) all at
// once.
package compiler

package agentgraph

import _ "embed"

// Version is the released version of the module, read from the VERSION file.
//
//go:embed VERSION
var Version string

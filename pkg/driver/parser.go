package driver

import "github.com/lethe-lang/lethe/pkg/compiler"

// Parser is the front-end hook cmd/lethec installs on its Engine. The
// grammar itself ships outside this module; a build that links one in
// assigns this variable from an init function, and the stock build
// leaves it nil (compile then reports that no front end is linked,
// while dump/explore still work on already-compiled images).
var Parser compiler.ParseFunc

package atom

import "github.com/dacapoday/columnar"

var ErrClosed = columnar.ErrClosed

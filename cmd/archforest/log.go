package main

import (
	"fmt"
	"io"
	"os"
	"time"
)

// logOutput is where verbose progress is written
var logOutput io.Writer = os.Stderr

// logger prints progress lines, prefixed with the time of day, when
// the verbose flag is set
type logger bool

func (l logger) Logf(format string, a ...interface{}) {
	if !l {
		return
	}
	fmt.Fprintf(logOutput, "%s archforest: %s\n", time.Now().Format("15:04:05.000"), fmt.Sprintf(format, a...))
}

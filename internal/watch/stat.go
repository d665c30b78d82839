package watch

import "os"

// lstat is a variable so tests can simulate races with deleted paths.
var lstat = os.Lstat

package launcher

import "os/exec"

// allocateCmdOptions applies platform-specific process attributes before
// starting the browser. Overridden for linux in exec_linux.go to kill the
// child if this process dies.
var allocateCmdOptions = func(cmd *exec.Cmd) {}

// Command clrun builds and runs one vector kernel on a compute device and
// optionally checks the result against the host.
package main

import (
	"os"

	"k8s.io/klog/v2"
)

func main() {
	code := Execute(os.Args[1:], os.LookupEnv)
	klog.Flush()
	os.Exit(code)
}

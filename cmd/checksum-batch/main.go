// checksum-batch drives the batch checksum validation workflow from the
// command line: initiate jobs, reconcile completion reports, and
// finalize verified checksums as object tags.
package main

func main() {
	Execute()
}

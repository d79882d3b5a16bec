// Command fieldmap flattens documents and applies mapping files from the
// command line.
package main

func main() {
	Execute()
}

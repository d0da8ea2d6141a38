// Command arbor plays, inspects, validates and serves story graphs.
package main

func main() {
	Execute()
}

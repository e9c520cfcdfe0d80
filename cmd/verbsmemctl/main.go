// Command verbsmemctl exercises the fork-safe region allocator from the shell.
package main

func main() {
	execute()
}

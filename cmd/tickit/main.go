// Command tickit runs a simulation described by a YAML configuration file.
package main

func main() {
	Execute()
}

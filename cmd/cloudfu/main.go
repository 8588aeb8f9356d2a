// Cloudfu - Cloud Config Expansion Engine
// Expand. Gate. Apply.
package main

func main() {
	Execute()
}

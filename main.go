package main

import "github.com/edgeflare/silver/cmd/silver"

func main() {
	silver.Main()
}

package main

import "protodash/internal/app"

func main() {
	app.Main()
}

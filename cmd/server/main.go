package main

import "taxtrack/internal/app"

func main() {
	app.Run()
}

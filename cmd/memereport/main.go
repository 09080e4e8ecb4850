// Command memereport crawls the top memes of a subreddit, keeps their vote
// history and renders an HTML report.
package main

import "github.com/tbourn/go-meme-report/internal/cli"

// version is set at build time with -ldflags "-X main.version=...".
var version string

func main() {
	cli.Execute(version)
}

// The main package for the social-crawler executable.
package main

import (
	"github.com/feedlake/social-crawler/cmd"
)

func main() {
	cmd.Execute()
}

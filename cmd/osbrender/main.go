// Command osbrender renders an osu! storyboard to a video file.
package main

import "os"

func main() {
	os.Exit(Execute())
}

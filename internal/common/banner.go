package common

import "github.com/ternarybob/banner"

// PrintBanner displays the startup banner for operators watching the
// process start in a terminal.
func PrintBanner(version string) {
	banner.Print("CEG Radar", version)
}

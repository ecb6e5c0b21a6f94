// Package main is htmlscan, a command line companion to the proxy.
//
// Usage:
//
//	# Show tag events and splice points
//	htmlscan events page.html
//
//	# Same events, fed one byte at a time
//	curl -s http://localhost:3000/ | htmlscan events --chunk 1 -
//
//	# Check a fragment before adding it to the rules file
//	htmlscan check '<div id="banner">hi</div>'
package main

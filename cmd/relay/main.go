// Command relay watches a forum homepage for new torrent attachments and
// posts each one to a Telegram channel exactly once.
//
// Usage:
//
//	relay run
//	relay once --dry-run
package main

func main() {
	Execute()
}

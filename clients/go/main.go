// Council CLI - Command line client for Council1901
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/piriwata/Council1901/clients/go/council"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("COUNCIL_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	client := council.NewClient(baseURL)
	cmd := os.Args[1]

	switch cmd {
	case "health":
		resp, err := client.Health()
		exitOnError(err)
		printJSON(resp)

	case "auth":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: council auth <room_id> <faction>")
			os.Exit(1)
		}
		_, err := client.Auth(os.Args[2], os.Args[3])
		exitOnError(err)
		exitOnError(client.SaveConfig())
		fmt.Printf("Signed in as %s in %s\n", os.Args[3], os.Args[2])

	case "conversations":
		convs, err := client.ListConversations()
		exitOnError(err)
		for _, c := range convs {
			fmt.Printf("  %s  %s\n", c.ID, strings.Join(c.Participants, ", "))
		}

	case "create":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: council create <faction> [faction]")
			os.Exit(1)
		}
		resp, err := client.CreateConversation(os.Args[2:]...)
		exitOnError(err)
		fmt.Println(resp.ConversationID)

	case "read":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: council read <conversation_id> [since]")
			os.Exit(1)
		}
		var since int64
		if len(os.Args) > 3 {
			v, err := strconv.ParseInt(os.Args[3], 10, 64)
			exitOnError(err)
			since = v
		}
		msgs, err := client.GetMessages(os.Args[2], since, 0)
		exitOnError(err)
		for _, msg := range msgs {
			ts := time.UnixMilli(msg.Timestamp).Format("2006-01-02 15:04:05")
			fmt.Printf("[%s] %s: %s\n", ts, msg.Sender, msg.Content)
		}

	case "post":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: council post <conversation_id> <message>")
			os.Exit(1)
		}
		resp, err := client.PostMessage(os.Args[2], os.Args[3])
		exitOnError(err)
		fmt.Printf("Posted: %s\n", resp.MessageID)

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`Council CLI - private negotiations for Council1901 games

Usage: council <command> [options]

Commands:
  auth <room> <faction>          Get and save an access token
  conversations                  List your conversations
  create <faction> [faction]     Open a conversation
  read <conversation> [since]    Read messages
  post <conversation> <message>  Send a message
  health                         Check server health

Environment:
  COUNCIL_URL      Server URL (default: http://localhost:8080)
  COUNCIL_CONFIG   Config directory (default: ~/.council)`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

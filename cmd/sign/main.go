package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/piriwata/Council1901/internal/crypto"
	"github.com/piriwata/Council1901/internal/models"
)

func main() {
	secret := flag.String("secret", os.Getenv("HMAC_SECRET"), "Signing secret (defaults to $HMAC_SECRET)")
	roomID := flag.String("room", "", "Room ID")
	faction := flag.String("faction", "", "Faction")
	verify := flag.String("verify", "", "Verify a token instead of issuing one")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "Usage: sign -secret <secret> -room <room_id> -faction <faction>")
		fmt.Fprintln(os.Stderr, "       sign -secret <secret> -verify <token>")
		fmt.Fprintln(os.Stderr, "  -secret defaults to $HMAC_SECRET")
		os.Exit(1)
	}

	tokens, err := crypto.NewTokenService([]byte(*secret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid secret: %v\n", err)
		os.Exit(1)
	}

	if *verify != "" {
		claims, err := tokens.Verify(*verify)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid token: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("room_id: %s\nfaction: %s\n", claims.RoomID, claims.Faction)
		return
	}

	f, err := models.ParseFaction(*faction)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid faction: %v\n", err)
		os.Exit(1)
	}

	token, err := tokens.Issue(*roomID, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Authorization: Bearer %s\n", token)
}

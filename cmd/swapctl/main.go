// Command swapctl is an operator utility for the swap intake endpoint.
// It mints a bearer token with the shared intake secret and submits a
// swap request for a user, printing the server's JSON reply.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/server/auth"
)

func main() {
	_ = godotenv.Load()

	var (
		baseURL    = flag.String("url", "http://127.0.0.1:3000", "intake endpoint base URL")
		secret     = flag.String("secret", os.Getenv("INTAKE_SECRET_KEY"), "intake HMAC secret")
		caller     = flag.String("caller", "swapctl", "caller name embedded in the token")
		telegramID = flag.String("user", "", "Telegram user ID")
		outputMint = flag.String("mint", "", "output token mint address")
		tokenOnly  = flag.Bool("token-only", false, "print a bearer token and exit")
	)
	flag.Parse()

	if *secret == "" {
		log.Fatal("intake secret is required (-secret or INTAKE_SECRET_KEY)")
	}

	token, err := auth.GenerateIntakeToken(*caller, []byte(*secret), 24*time.Hour)
	if err != nil {
		log.Fatalf("token generation: %v", err)
	}

	if *tokenOnly {
		fmt.Println(token)
		return
	}

	if *telegramID == "" || *outputMint == "" {
		log.Fatal("-user and -mint are required")
	}

	body, err := json.Marshal(map[string]string{
		"telegramId": *telegramID,
		"outputMint": *outputMint,
	})
	if err != nil {
		log.Fatal(err)
	}

	req, err := http.NewRequest(http.MethodPost, *baseURL+"/swap", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := (&http.Client{Timeout: 30 * time.Second}).Do(req)
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s %s\n", resp.Status, reply)
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}

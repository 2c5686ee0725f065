// Command examples demonstrates driving the payment engine through the Go SDK:
// bind a wallet, schedule a weekly payment, then read back the listing.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Greeshmanth19/payment-bot-crypto/sdk/go/paybot"
)

func main() {
	baseURL := os.Getenv("PAYBOT_API")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}

	client, err := paybot.NewClient(baseURL, nil)
	if err != nil {
		log.Fatalf("create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	wallet, err := client.BindWallet(ctx, "42", "")
	if err != nil {
		log.Fatalf("bind wallet: %v", err)
	}
	fmt.Printf("wallet: %s (created=%v)\n", wallet.Address, wallet.Created)

	created, err := client.SchedulePayment(ctx, paybot.ScheduleRequest{
		Owner:     "42",
		Recipient: "@dora",
		Amount:    "0.25",
		Schedule:  "every friday",
	})
	if err != nil {
		log.Fatalf("schedule payment: %v", err)
	}
	fmt.Printf("scheduled %s, next run %s\n", created.ID, created.NextExecution)

	payments, err := client.Payments(ctx, "42")
	if err != nil {
		log.Fatalf("list payments: %v", err)
	}
	for _, p := range payments {
		fmt.Printf("- %s -> %s %s ETH (active=%v)\n", p.ID, p.RecipientDisplay, p.AmountETH, p.Active)
	}
}

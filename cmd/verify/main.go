package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/calmisland/go-receipt-verify/pkg/iap"
)

func main() {
	var (
		platform     = flag.String("platform", "", "store platform: amazon, apple, google or roku")
		receipt      = flag.String("receipt", "", "receipt data, purchase token, receipt ID or transaction ID")
		productID    = flag.String("productId", "", "product ID (google: required, apple: optional check)")
		packageName  = flag.String("packageName", "", "package name (google: required, apple: optional bundle check)")
		secret       = flag.String("secret", "", "apple shared secret or amazon developer secret")
		subscription = flag.Bool("subscription", false, "treat the google receipt as a subscription purchase")
		userID       = flag.String("userId", "", "amazon user ID")
		devToken     = flag.String("devToken", "", "roku developer API token")
		keyFile      = flag.String("keyFile", "", "path to the google service-account key JSON file")
		timeout      = flag.Duration("timeout", 30*time.Second, "overall request timeout")
	)
	flag.Parse()

	if *platform == "" || *receipt == "" {
		fmt.Fprintln(os.Stderr, "both -platform and -receipt are required")
		flag.Usage()
		os.Exit(1)
	}

	payment := &iap.Payment{
		Receipt:      *receipt,
		ProductID:    *productID,
		PackageName:  *packageName,
		Secret:       *secret,
		Subscription: *subscription,
		UserID:       *userID,
		DevToken:     *devToken,
	}

	if *keyFile != "" {
		keyObject, err := os.ReadFile(*keyFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read key file: %v\n", err)
			os.Exit(1)
		}
		payment.KeyObject = keyObject
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := iap.New().VerifyPayment(ctx, *platform, payment)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println(string(output))
}

// Command xmrto interacts with the XMR.to order API: create and track
// orders, confirm partial payments, check prices, lightning routes and
// exchange parameters, and fetch QR codes.
//
// Usage:
//
//	xmrto create-order --destination 3K1jSVxYqzqj7c9oLKXC7uJnwgACuTEZrY --btc-amount 0.001 [--follow]
//	xmrto create-ln-order --invoice lnbc... [--follow]
//	xmrto track-order --secret-key xmrto-ebmA9q [--follow]
//	xmrto confirm-partial-payment --secret-key xmrto-ebmA9q
//	xmrto check-price --btc-amount 0.01
//	xmrto check-ln-routes --invoice lnbc...
//	xmrto parameters
//	xmrto qrcode --data "something"
//
// Defaults come from the environment (XMRTO_URL, API_VERSION, SECRET_KEY,
// BTC_ADDRESS, BTC_AMOUNT, XMR_AMOUNT, LN_INVOICE, XMRTO_CERTIFICATE,
// QR_DATA); flags override per invocation.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/veiloq/xmrto-client/pkg/config"
	"github.com/veiloq/xmrto-client/pkg/connection"
	"github.com/veiloq/xmrto-client/pkg/logging"
	"github.com/veiloq/xmrto-client/pkg/xmrto"
)

// Version of the command-line tool.
const Version = "0.1.0"

const qrcodeFile = "qrcode.png"

type commonFlags struct {
	url     string
	api     string
	cert    string
	debug   bool
	version bool
}

func registerCommon(fs *flag.FlagSet, cfg *config.Config, c *commonFlags) {
	fs.StringVar(&c.url, "url", cfg.URL, "XMR.to URL to use")
	fs.StringVar(&c.api, "api", cfg.APIVersion, "XMR.to API version to use")
	fs.StringVar(&c.cert, "cert", cfg.Certificate, "local certificate bundle")
	fs.BoolVar(&c.debug, "debug", false, "show debug info")
}

func (c *commonFlags) logger() logging.Logger {
	if c.debug {
		return logging.NewZapLogger(logging.WithDebugLevel(), logging.WithDevelopmentMode())
	}
	return logging.NewZapLogger()
}

func (c *commonFlags) newAPI(logger logging.Logger) (*xmrto.API, *connection.Error) {
	return xmrto.NewAPI(xmrto.APIOptions{
		URL:         c.url,
		Version:     c.api,
		Certificate: c.cert,
		Logger:      logger,
	})
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if len(args) == 0 {
		usage()
		return 1
	}

	if args[0] == "--version" || args[0] == "version" {
		fmt.Printf("xmrto %s\n", Version)
		return 0
	}

	// The follow loop stops between polls on the first interrupt; the
	// last snapshot is printed on the way out.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	subcommand, rest := args[0], args[1:]
	switch subcommand {
	case "create-order":
		return cmdCreateOrder(ctx, cfg, rest)
	case "create-ln-order":
		return cmdCreateLNOrder(ctx, cfg, rest)
	case "track-order":
		return cmdTrackOrder(ctx, cfg, rest)
	case "confirm-partial-payment":
		return cmdConfirmPartialPayment(ctx, cfg, rest)
	case "check-price":
		return cmdCheckPrice(ctx, cfg, rest)
	case "check-ln-routes":
		return cmdCheckLNRoutes(ctx, cfg, rest)
	case "parameters":
		return cmdParameters(ctx, cfg, rest)
	case "qrcode":
		return cmdQRCode(ctx, cfg, rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", subcommand)
		usage()
		return 1
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: xmrto <subcommand> [flags]

subcommands:
  create-order             create an order
  create-ln-order          create a lightning order
  track-order              track an existing order
  confirm-partial-payment  confirm the partial payment of an order
  check-price              get the price for an amount
  check-ln-routes          get available lightning routes
  parameters               get order parameters
  qrcode                   fetch a QR code into qrcode.png

common flags: --url --api --cert --debug`)
}

// followOrTrack runs the follow loop (or a single observation) and prints
// each snapshot, including a payment prompt while the order awaits funds.
func followOrTrack(ctx context.Context, tracker *xmrto.Tracker, follow bool) {
	opts := xmrto.DefaultFollowOptions()
	opts.StopOnFirstObservation = !follow
	opts.OnUpdate = func(s xmrto.Snapshot) {
		fmt.Println(s)
		if s.State == xmrto.StateUnpaid || s.State == xmrto.StateUnderpaid {
			if s.Status != nil && s.Status.PaymentSubaddress != nil && s.Status.InAmountRemaining != nil {
				fmt.Println("Pay:")
				fmt.Printf("    transfer %s %s\n", *s.Status.PaymentSubaddress, *s.Status.InAmountRemaining)
			}
		}
	}

	tracker.Follow(ctx, opts)
	fmt.Println(tracker.Snapshot())
}

func cmdCreateOrder(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("create-order", flag.ExitOnError)
	var c commonFlags
	registerCommon(fs, cfg, &c)
	destination := fs.String("destination", cfg.DestinationAddress, "destination (BTC) address to send money to")
	btcAmount := fs.String("btc-amount", cfg.BTCAmount, "amount to send in BTC")
	xmrAmount := fs.String("xmr-amount", cfg.XMRAmount, "amount to send in XMR")
	follow := fs.Bool("follow", false, "keep tracking the order")
	fs.Parse(args)

	logger := c.logger()
	api, apiErr := c.newAPI(logger)
	if apiErr != nil {
		fmt.Fprintln(os.Stderr, apiErr)
		return 1
	}

	tracker := xmrto.NewTracker(api, logger)
	if err := tracker.CreateOrder(ctx, *destination, *btcAmount, *xmrAmount); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	followOrTrack(ctx, tracker, *follow)
	return 0
}

func cmdCreateLNOrder(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("create-ln-order", flag.ExitOnError)
	var c commonFlags
	registerCommon(fs, cfg, &c)
	invoice := fs.String("invoice", cfg.LightningInvoice, "lightning invoice to pay")
	follow := fs.Bool("follow", false, "keep tracking the order")
	fs.Parse(args)

	logger := c.logger()
	api, apiErr := c.newAPI(logger)
	if apiErr != nil {
		fmt.Fprintln(os.Stderr, apiErr)
		return 1
	}

	tracker := xmrto.NewTracker(api, logger)
	if err := tracker.CreateLightningOrder(ctx, *invoice); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	followOrTrack(ctx, tracker, *follow)
	return 0
}

func cmdTrackOrder(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("track-order", flag.ExitOnError)
	var c commonFlags
	registerCommon(fs, cfg, &c)
	secretKey := fs.String("secret-key", cfg.SecretKey, "secret key of an existing order")
	follow := fs.Bool("follow", false, "keep tracking the order")
	fs.Parse(args)

	logger := c.logger()
	api, apiErr := c.newAPI(logger)
	if apiErr != nil {
		fmt.Fprintln(os.Stderr, apiErr)
		return 1
	}

	tracker := xmrto.NewTracker(api, logger)
	if err := tracker.PollStatus(ctx, *secretKey); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	followOrTrack(ctx, tracker, *follow)
	return 0
}

func cmdConfirmPartialPayment(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("confirm-partial-payment", flag.ExitOnError)
	var c commonFlags
	registerCommon(fs, cfg, &c)
	secretKey := fs.String("secret-key", cfg.SecretKey, "secret key of an existing order")
	follow := fs.Bool("follow", false, "keep tracking the order")
	fs.Parse(args)

	logger := c.logger()
	api, apiErr := c.newAPI(logger)
	if apiErr != nil {
		fmt.Fprintln(os.Stderr, apiErr)
		return 1
	}

	tracker := xmrto.NewTracker(api, logger)
	confirmed, err := tracker.ConfirmPartialPayment(ctx, *secretKey)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if !confirmed {
		fmt.Println(tracker.Snapshot())
		return 0
	}

	followOrTrack(ctx, tracker, *follow)
	return 0
}

func cmdCheckPrice(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("check-price", flag.ExitOnError)
	var c commonFlags
	registerCommon(fs, cfg, &c)
	btcAmount := fs.String("btc-amount", cfg.BTCAmount, "amount to send in BTC")
	xmrAmount := fs.String("xmr-amount", cfg.XMRAmount, "amount to send in XMR")
	fs.Parse(args)

	logger := c.logger()
	api, apiErr := c.newAPI(logger)
	if apiErr != nil {
		fmt.Fprintln(os.Stderr, apiErr)
		return 1
	}

	price, err := api.CheckPrice(ctx, *btcAmount, *xmrAmount)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	printRecord(price)
	return 0
}

func cmdCheckLNRoutes(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("check-ln-routes", flag.ExitOnError)
	var c commonFlags
	registerCommon(fs, cfg, &c)
	invoice := fs.String("invoice", cfg.LightningInvoice, "lightning invoice to check routes for")
	fs.Parse(args)

	logger := c.logger()
	api, apiErr := c.newAPI(logger)
	if apiErr != nil {
		fmt.Fprintln(os.Stderr, apiErr)
		return 1
	}

	routes, err := api.CheckLightningRoutes(ctx, *invoice)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if routes == nil {
		fmt.Fprintf(os.Stderr, "lightning routes are not available with API %s\n", c.api)
		return 1
	}

	printRecord(routes)
	return 0
}

func cmdParameters(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("parameters", flag.ExitOnError)
	var c commonFlags
	registerCommon(fs, cfg, &c)
	fs.Parse(args)

	logger := c.logger()
	api, apiErr := c.newAPI(logger)
	if apiErr != nil {
		fmt.Fprintln(os.Stderr, apiErr)
		return 1
	}

	parameters, err := api.Parameters(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	printRecord(parameters)
	return 0
}

func cmdQRCode(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("qrcode", flag.ExitOnError)
	var c commonFlags
	registerCommon(fs, cfg, &c)
	data := fs.String("data", cfg.QRData, "data to encode")
	fs.Parse(args)

	logger := c.logger()
	api, apiErr := c.newAPI(logger)
	if apiErr != nil {
		fmt.Fprintln(os.Stderr, apiErr)
		return 1
	}

	image, err := api.QRCode(ctx, *data)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if writeErr := os.WriteFile(qrcodeFile, image, 0o644); writeErr != nil {
		fmt.Fprintln(os.Stderr, writeErr)
		return 1
	}

	fmt.Printf("Stored qrcode in %s.\n", qrcodeFile)
	return 0
}

// printRecord renders a canonical record as JSON, skipping unset fields.
func printRecord(record any) {
	b, err := json.Marshal(record)
	if err != nil {
		fmt.Println(record)
		return
	}
	fmt.Println(string(b))
}

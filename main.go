package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tournevent/cdek/internal/server"
	"github.com/tournevent/cdek/internal/telemetry"
	"github.com/tournevent/cdek/pkg/cdek"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var (
	sandboxFlag bool

	priceFlags struct {
		from, to                      int
		weight, length, width, height float64
		tariff                        int
		tariffs                       []int
		decimals                      int32
	}

	pvzFlags struct {
		city int
		cod  bool
	}

	orderFile string

	statusFlags struct {
		numbers, dispatch []string
	}
)

var rootCmd = &cobra.Command{
	Use:     "cdek",
	Short:   "CDEK Bridge - CDEK shipping API client and HTTP service",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Calculate the delivery price for one tariff",
	RunE:  runPrice,
}

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Calculate delivery prices for a list of tariffs",
	RunE:  runPrices,
}

var pvzCmd = &cobra.Command{
	Use:   "pvz",
	Short: "List pickup points of a city",
	RunE:  runPvz,
}

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Create an order from a JSON file",
	RunE:  runOrder,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status history of orders",
	RunE:  runStatus,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&sandboxFlag, "sandbox", false, "use the CDEK test environment (overrides CDEK_SANDBOX)")

	for _, cmd := range []*cobra.Command{priceCmd, pricesCmd} {
		f := cmd.Flags()
		f.IntVar(&priceFlags.from, "from", 0, "sender city id")
		f.IntVar(&priceFlags.to, "to", 0, "receiver city id")
		f.Float64Var(&priceFlags.weight, "weight", 0, "parcel weight, kg")
		f.Float64Var(&priceFlags.length, "length", 0, "parcel length, cm")
		f.Float64Var(&priceFlags.width, "width", 0, "parcel width, cm")
		f.Float64Var(&priceFlags.height, "height", 0, "parcel height, cm")
		f.Int32Var(&priceFlags.decimals, "decimals", 2, "decimal places of the price")
		cmd.MarkFlagRequired("from")
		cmd.MarkFlagRequired("to")
	}
	priceCmd.Flags().IntVar(&priceFlags.tariff, "tariff", 0, "tariff id (default 136)")
	pricesCmd.Flags().IntSliceVar(&priceFlags.tariffs, "tariffs", nil, "tariff ids in priority order")
	pricesCmd.MarkFlagRequired("tariffs")

	pvzCmd.Flags().IntVar(&pvzFlags.city, "city", 0, "city id")
	pvzCmd.Flags().BoolVar(&pvzFlags.cod, "cod", false, "only points accepting cash on delivery")
	pvzCmd.MarkFlagRequired("city")

	orderCmd.Flags().StringVarP(&orderFile, "file", "f", "-", "order JSON file, - for stdin")

	statusCmd.Flags().StringSliceVar(&statusFlags.numbers, "number", nil, "order numbers")
	statusCmd.Flags().StringSliceVar(&statusFlags.dispatch, "dispatch", nil, "CDEK dispatch numbers")

	rootCmd.AddCommand(serveCmd, priceCmd, pricesCmd, pvzCmd, orderCmd, statusCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Load configuration
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Initialize telemetry
	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.ServiceName, cfg.Version)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(context.Background())
	}

	client, err := initClient(cfg, logger)
	if err != nil {
		return err
	}

	logStartup(logger, cfg)

	srv := server.New(server.Config{Port: cfg.Port}, client, logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func priceRequest() *cdek.PriceRequest {
	return &cdek.PriceRequest{
		SenderCityID:   priceFlags.from,
		ReceiverCityID: priceFlags.to,
		Goods: []cdek.Good{{
			Weight: priceFlags.weight,
			Length: priceFlags.length,
			Width:  priceFlags.width,
			Height: priceFlags.height,
		}},
		TariffID: priceFlags.tariff,
	}
}

func runPrice(cmd *cobra.Command, args []string) error {
	client, done, err := commandClient(cmd)
	if err != nil {
		return err
	}
	defer done()

	result, err := client.CalculatePrice(cmd.Context(), priceRequest(), priceFlags.decimals)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func runPrices(cmd *cobra.Command, args []string) error {
	client, done, err := commandClient(cmd)
	if err != nil {
		return err
	}
	defer done()

	req := priceRequest()
	for i, id := range priceFlags.tariffs {
		req.TariffList = append(req.TariffList, cdek.TariffPriority{ID: id, Priority: i + 1})
	}

	outcomes, err := client.CalculatePrices(cmd.Context(), req, priceFlags.decimals)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), outcomes)
}

func runPvz(cmd *cobra.Command, args []string) error {
	client, done, err := commandClient(cmd)
	if err != nil {
		return err
	}
	defer done()

	points, err := client.ListPickupPoints(cmd.Context(), pvzFlags.city, pvzFlags.cod)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), points)
}

func runOrder(cmd *cobra.Command, args []string) error {
	order, err := readOrder(orderFile)
	if err != nil {
		return err
	}
	if order.Number == "" {
		order.Number = uuid.NewString()
	}

	client, done, err := commandClient(cmd)
	if err != nil {
		return err
	}
	defer done()

	ack, err := client.CreateOrder(cmd.Context(), order)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), ack)
}

func runStatus(cmd *cobra.Command, args []string) error {
	var queries []cdek.StatusQuery
	for _, n := range statusFlags.numbers {
		queries = append(queries, cdek.StatusQuery{Number: n})
	}
	for _, d := range statusFlags.dispatch {
		queries = append(queries, cdek.StatusQuery{DispatchNumber: d})
	}

	client, done, err := commandClient(cmd)
	if err != nil {
		return err
	}
	defer done()

	records, err := client.CheckOrderStatus(cmd.Context(), queries)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), records)
}

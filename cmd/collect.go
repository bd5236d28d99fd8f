package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"quant-platform/internal/dto"
	"quant-platform/pkg/common"
	"quant-platform/pkg/logger"
	"quant-platform/pkg/utils"

	"github.com/spf13/cobra"
)

var (
	collectMarket string
	collectSector string
	collectCodes  []string
	collectDays   int
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect daily prices once and exit",
	Run:   RunCollect,
}

func init() {
	collectCmd.Flags().StringVar(&collectMarket, "market", "", "market to collect (KOSPI, KOSDAQ); empty collects all")
	collectCmd.Flags().StringVar(&collectSector, "sector", "", "restrict the code universe to one sector")
	collectCmd.Flags().StringSliceVar(&collectCodes, "codes", nil, "explicit stock codes, comma separated")
	collectCmd.Flags().IntVar(&collectDays, "days", 30, "days back from today")
}

func RunCollect(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		log.Fatalf("Failed to create app dependency: %v", err)
	}
	defer appDep.Close()

	repo, services, err := appDep.NewServices()
	if err != nil {
		log.Fatalf("Failed to create services: %v", err)
	}

	markets := common.GetMarketList()
	if collectMarket != "" {
		markets = []string{strings.ToUpper(collectMarket)}
	}
	start, end := utils.DateWindow(time.Now(), appDep.cfg.Scheduler.Location(), collectDays)

	for _, market := range markets {
		if !utils.ShouldContinue(ctx, appDep.log) {
			return
		}

		res, err := services.DataPipeline.Fetch(ctx, dto.CollectRequest{
			Market: market,
			Sector: collectSector,
			Codes:  collectCodes,
			Start:  start,
			End:    end,
		})
		if err != nil {
			appDep.log.Error("Collection failed", logger.StringField("market", market), logger.ErrorField(err))
			continue
		}

		saved, err := repo.StockRepo.UpsertPrices(ctx, res.Prices)
		if err != nil {
			appDep.log.Error("Failed to save prices", logger.StringField("market", market), logger.ErrorField(err))
			continue
		}

		fmt.Printf("%s %s~%s: %d/%d codes, %d rows saved, %d failed (%s)\n",
			market, utils.FormatDate(start), utils.FormatDate(end),
			res.Success, res.TotalCodes, saved, res.Failed, res.Elapsed.Truncate(time.Millisecond))
	}
}

package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	BotToken     string
	AdminIDs     []int64
	AdminGroup   int64 // 0 = admin notifications disabled
	VouchChannel int64 // 0 = vouch posts disabled
	SupportURL   string
	DatabaseURL  string

	// Fallback deposit addresses, used only when wallet_addresses has no
	// active row for the currency.
	BTCAddress string
	LTCAddress string

	// Blockchain watcher.
	BlockchainCheckIntervalMs int
	BlockstreamURL            string
	MempoolURL                string
	BlockchairURL             string
	BlockcypherURL            string
	BlockchairAPIKey          string
	BlockcypherAPIKey         string

	// Directory reconciler.
	BatchSize            int
	BatchPauseMs         int
	ProgressEditInterval int
	MergerCron           string
	MergerTimezone       string
}

var AppCfg AppConfig

func LoadConfig() {
	err := godotenv.Load()
	if err != nil {
		log.Println(".env file not found, relying on environment variables")
	}

	AppCfg.BotToken = os.Getenv("BOT_TOKEN")
	AppCfg.AdminIDs = parseIDList(os.Getenv("ADMIN_IDS"))
	AppCfg.AdminGroup = parseInt64(os.Getenv("ADMIN_GROUP"), 0)
	AppCfg.VouchChannel = parseInt64(os.Getenv("VOUCH_CHANNEL"), 0)
	AppCfg.SupportURL = os.Getenv("SUPPORT_URL")
	AppCfg.DatabaseURL = os.Getenv("DATABASE_URL")

	AppCfg.BTCAddress = os.Getenv("BTC_ADDRESS")
	AppCfg.LTCAddress = os.Getenv("LTC_ADDRESS")

	AppCfg.BlockchainCheckIntervalMs = parseInt(os.Getenv("BLOCKCHAIN_CHECK_INTERVAL"), 30000)
	AppCfg.BlockstreamURL = getEnvDefault("BLOCKSTREAM_URL", "https://blockstream.info/api")
	AppCfg.MempoolURL = getEnvDefault("MEMPOOL_URL", "https://mempool.space/api")
	AppCfg.BlockchairURL = getEnvDefault("BLOCKCHAIR_URL", "https://api.blockchair.com")
	AppCfg.BlockcypherURL = getEnvDefault("BLOCKCYPHER_URL", "https://api.blockcypher.com/v1")
	AppCfg.BlockchairAPIKey = os.Getenv("BLOCKCHAIR_API_KEY")
	AppCfg.BlockcypherAPIKey = os.Getenv("BLOCKCYPHER_API_KEY")

	AppCfg.BatchSize = parseInt(os.Getenv("BATCH_SIZE"), 25)
	AppCfg.BatchPauseMs = parseInt(os.Getenv("BATCH_PAUSE_MS"), 1100)
	AppCfg.ProgressEditInterval = parseInt(os.Getenv("PROGRESS_EDIT_INTERVAL"), 2)
	AppCfg.MergerCron = getEnvDefault("MERGER_CRON", "0 3 * * *")
	AppCfg.MergerTimezone = getEnvDefault("MERGER_TIMEZONE", "Africa/Nairobi")

	if AppCfg.BotToken == "" || AppCfg.DatabaseURL == "" {
		log.Fatal("Critical environment variables are missing (BOT_TOKEN, DATABASE_URL). Bot will exit.")
	}
}

func parseIDList(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Printf("ADMIN_IDS: skipping bad entry %q", part)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func parseInt64(s string, def int64) int64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return v
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

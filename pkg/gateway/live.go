package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"tradingfleet/internal/config"
	"tradingfleet/internal/logging"
	"tradingfleet/internal/types"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// LiveGateway streams public trade prints over a websocket
// (`publicTrade.{symbol}` topics, §4.1) and places orders and reads account
// state over REST, rate-limited at the gateway boundary.
type LiveGateway struct {
	cfg    config.ExchangeConfig
	log    *logging.Logger
	client *http.Client
	limiter *rate.Limiter

	mu         sync.RWMutex
	subscribed map[types.Symbol]bool
	conn       *websocket.Conn
	connected  bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	updates chan types.PriceUpdate
}

// NewLiveGateway builds a LIVE gateway from cfg. It does not dial until
// Connect is called.
func NewLiveGateway(cfg config.ExchangeConfig, log *logging.Logger) *LiveGateway {
	limit := rate.Limit(cfg.RateLimitPerSecond)
	if cfg.RateLimitPerSecond <= 0 {
		limit = rate.Inf
	}
	return &LiveGateway{
		cfg:        cfg,
		log:        log,
		client:     &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(limit, cfg.RateLimitBurst),
		subscribed: make(map[types.Symbol]bool),
		updates:    make(chan types.PriceUpdate, 1024),
	}
}

func (g *LiveGateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	if g.connected {
		g.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.mu.Unlock()

	g.wg.Add(1)
	go g.runLoop(runCtx)
	return nil
}

func (g *LiveGateway) Disconnect() error {
	g.mu.Lock()
	if !g.connected {
		g.mu.Unlock()
		return nil
	}
	cancel := g.cancel
	conn := g.conn
	g.connected = false
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	g.wg.Wait()
	return nil
}

func (g *LiveGateway) Subscribe(symbols []types.Symbol) error {
	g.mu.Lock()
	for _, s := range symbols {
		g.subscribed[s] = true
	}
	conn := g.conn
	g.mu.Unlock()

	for _, s := range symbols {
		if err := g.setLeverage(context.Background(), s); err != nil {
			g.log.Warnf("gateway: set leverage for %s: %v", s, err)
		}
	}

	if conn == nil {
		return nil // applied on next (re)connect
	}
	return g.sendSubscribe(conn, symbols, "subscribe")
}

// setLeverage applies the configured leverage multiplier to symbol before it
// starts trading. A rejection here (e.g. leverage already set to this value)
// is logged and otherwise ignored — it does not block trading.
func (g *LiveGateway) setLeverage(ctx context.Context, symbol types.Symbol) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	leverage := strconv.Itoa(g.cfg.LeverageMultiplier)
	body := map[string]interface{}{
		"category":     "linear",
		"symbol":       string(symbol),
		"buyLeverage":  leverage,
		"sellLeverage": leverage,
	}
	var env restEnvelope
	if err := g.postJSON(ctx, "/v5/position/set-leverage", body, &env); err != nil {
		return err
	}
	if env.RetCode != 0 {
		return fmt.Errorf("gateway: set leverage retCode=%d retMsg=%s", env.RetCode, env.RetMsg)
	}
	return nil
}

func (g *LiveGateway) Unsubscribe(symbols []types.Symbol) error {
	g.mu.Lock()
	for _, s := range symbols {
		delete(g.subscribed, s)
	}
	conn := g.conn
	g.mu.Unlock()
	if conn == nil {
		return nil
	}
	return g.sendSubscribe(conn, symbols, "unsubscribe")
}

func (g *LiveGateway) sendSubscribe(conn *websocket.Conn, symbols []types.Symbol, op string) error {
	args := make([]string, len(symbols))
	for i, s := range symbols {
		args[i] = fmt.Sprintf("publicTrade.%s", s)
	}
	return conn.WriteJSON(map[string]interface{}{"op": op, "args": args})
}

func (g *LiveGateway) PriceUpdates() <-chan types.PriceUpdate {
	return g.updates
}

func (g *LiveGateway) IsConnected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected
}

// runLoop owns the websocket connection for the gateway's lifetime,
// reconnecting after any dial failure or closed connection with the delay
// reconnectBackoff computes (§4.1).
func (g *LiveGateway) runLoop(ctx context.Context) {
	defer g.wg.Done()
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.cfg.WSBaseURL, nil)
		if err != nil {
			attempt++
			backoff := g.reconnectBackoff(attempt)
			g.log.LogReconnect(attempt, backoff, err)
			if !sleepOrDone(ctx, backoff) {
				return
			}
			continue
		}

		g.mu.Lock()
		g.conn = conn
		g.connected = true
		symbols := make([]types.Symbol, 0, len(g.subscribed))
		for s := range g.subscribed {
			symbols = append(symbols, s)
		}
		g.mu.Unlock()

		if len(symbols) > 0 {
			_ = g.sendSubscribe(conn, symbols, "subscribe")
		}
		attempt = 0
		g.log.LogReconnect(0, 0, nil)

		readErr := g.readLoop(ctx, conn)

		g.mu.Lock()
		g.connected = false
		g.conn = nil
		g.mu.Unlock()
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		attempt++
		backoff := g.reconnectBackoff(attempt)
		g.log.LogReconnect(attempt, backoff, readErr)
		if !sleepOrDone(ctx, backoff) {
			return
		}
	}
}

// reconnectBackoff grows the delay by the initial delay on each consecutive
// failed attempt (5s, 10s, ...) and caps it at the maximum (15s by default).
// The delay is the same whether the previous connection closed cleanly or not.
func (g *LiveGateway) reconnectBackoff(attempt int) time.Duration {
	delay := g.cfg.ReconnectInitialDelay * time.Duration(attempt)
	if delay > g.cfg.ReconnectMaxDelay {
		delay = g.cfg.ReconnectMaxDelay
	}
	if delay <= 0 {
		delay = g.cfg.ReconnectInitialDelay
	}
	return delay
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type wsTradeMessage struct {
	Topic string `json:"topic"`
	Data  []struct {
		Symbol string `json:"s"`
		Price  string `json:"p"`
	} `json:"data"`
}

func (g *LiveGateway) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(3 * defaultPingInterval))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(3 * defaultPingInterval))
		return nil
	})

	pingTicker := time.NewTicker(defaultPingInterval)
	defer pingTicker.Stop()
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-pingTicker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg wsTradeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		for _, t := range msg.Data {
			price, err := strconv.ParseFloat(t.Price, 64)
			if err != nil {
				continue
			}
			update := types.PriceUpdate{Symbol: types.Symbol(t.Symbol), Price: price}
			select {
			case g.updates <- update:
			default:
				select {
				case <-g.updates:
				default:
				}
				select {
				case g.updates <- update:
				default:
				}
			}
		}
	}
}

// PlaceOrder submits order over REST, rate-limited by the shared limiter
// (§4.1), and decodes Bybit's `{retCode, retMsg, result}` envelope.
func (g *LiveGateway) PlaceOrder(ctx context.Context, order types.Order) (types.FillConfirmation, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return types.FillConfirmation{}, err
	}

	body := map[string]interface{}{
		"category": "linear",
		"symbol":   string(order.Symbol),
		"side":     string(order.Side),
		"orderType": string(order.Type),
		"qty":      fmt.Sprintf("%v", order.Quantity),
	}
	if order.Type == types.OrderTypeLimit {
		body["price"] = fmt.Sprintf("%v", order.Price)
	}

	var env restEnvelope
	if err := g.postJSON(ctx, "/v5/order/create", body, &env); err != nil {
		return types.FillConfirmation{}, err
	}
	if env.RetCode != 0 {
		return types.FillConfirmation{}, &ErrOrderRejected{Reason: env.RetMsg}
	}

	return types.FillConfirmation{
		Symbol:   order.Symbol,
		OrderID:  order.ID,
		Side:     order.Side,
		Quantity: order.Quantity,
		Price:    order.Price,
		Tag:      order.Tag,
		Time:     time.Now(),
	}, nil
}

// GetInstruments fetches the venue's own tradable-symbol listing for the
// linear perpetual category, rate-limited alongside order placement since
// both share the REST quota.
func (g *LiveGateway) GetInstruments(ctx context.Context) ([]types.Symbol, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var env restEnvelope
	if err := g.getJSON(ctx, "/v5/market/instruments-info?category=linear", &env); err != nil {
		return nil, err
	}
	if env.RetCode != 0 {
		return nil, fmt.Errorf("gateway: instruments fetch retCode=%d retMsg=%s", env.RetCode, env.RetMsg)
	}

	result, ok := env.Result.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("gateway: unexpected instruments payload shape")
	}
	list, _ := result["list"].([]interface{})
	symbols := make([]types.Symbol, 0, len(list))
	for _, e := range list {
		entry, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		if s, ok := entry["symbol"].(string); ok {
			symbols = append(symbols, types.Symbol(s))
		}
	}
	return symbols, nil
}

// GetTopCandidates fetches the configured discovery endpoint's ranked
// candidate list (§4.7 step 2, §6): `{"d": [{"s": "<symbol>", ...}, ...]}`,
// capped at 25 entries.
func (g *LiveGateway) GetTopCandidates(ctx context.Context) ([]types.Symbol, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.DiscoveryURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: discovery fetch failed: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		D []struct {
			S string `json:"s"`
		} `json:"d"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("gateway: discovery decode failed: %w", err)
	}
	n := len(payload.D)
	if n > 25 {
		n = 25
	}
	symbols := make([]types.Symbol, 0, n)
	for _, row := range payload.D[:n] {
		symbols = append(symbols, types.Symbol(row.S))
	}
	return symbols, nil
}

// GetKlines fetches historical bars from the venue's kline endpoint. Bybit
// returns rows newest-first; the result is reversed to chronological order
// before returning, matching the ordering the rest of the fleet assumes.
func (g *LiveGateway) GetKlines(ctx context.Context, symbol types.Symbol, period time.Duration, limit int, since *time.Time) ([]types.OHLCVBar, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	interval := strconv.Itoa(int(period / time.Minute))
	path := fmt.Sprintf("/v5/market/kline?category=linear&symbol=%s&interval=%s&limit=%d", symbol, interval, limit)
	if since != nil {
		path += fmt.Sprintf("&start=%d", since.Add(period).UnixMilli())
	}

	var env restEnvelope
	if err := g.getJSON(ctx, path, &env); err != nil {
		return nil, err
	}
	if env.RetCode != 0 {
		return nil, fmt.Errorf("gateway: kline fetch retCode=%d retMsg=%s", env.RetCode, env.RetMsg)
	}

	result, ok := env.Result.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("gateway: unexpected kline payload shape")
	}
	rows, _ := result["list"].([]interface{})

	bars := make([]types.OHLCVBar, 0, len(rows))
	for _, r := range rows {
		row, ok := r.([]interface{})
		if !ok || len(row) < 6 {
			continue
		}
		bar, err := parseKlineRow(row)
		if err != nil {
			continue
		}
		bars = append(bars, bar)
	}
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

func parseKlineRow(row []interface{}) (types.OHLCVBar, error) {
	field := func(i int) string {
		s, _ := row[i].(string)
		return s
	}
	ms, err := strconv.ParseInt(field(0), 10, 64)
	if err != nil {
		return types.OHLCVBar{}, err
	}
	parse := func(i int) (float64, error) { return strconv.ParseFloat(field(i), 64) }
	open, err := parse(1)
	if err != nil {
		return types.OHLCVBar{}, err
	}
	high, err := parse(2)
	if err != nil {
		return types.OHLCVBar{}, err
	}
	low, err := parse(3)
	if err != nil {
		return types.OHLCVBar{}, err
	}
	closePrice, err := parse(4)
	if err != nil {
		return types.OHLCVBar{}, err
	}
	volume, err := parse(5)
	if err != nil {
		return types.OHLCVBar{}, err
	}
	return types.NewOHLCVBar(time.UnixMilli(ms), open, high, low, closePrice, volume), nil
}

func (g *LiveGateway) GetWalletBalance(ctx context.Context) (float64, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	var env restEnvelope
	if err := g.getJSON(ctx, "/v5/account/wallet-balance?accountType=UNIFIED", &env); err != nil {
		return 0, err
	}
	if env.RetCode != 0 {
		return 0, fmt.Errorf("gateway: wallet balance retCode=%d retMsg=%s", env.RetCode, env.RetMsg)
	}

	result, ok := env.Result.(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("gateway: unexpected wallet balance payload shape")
	}
	list, _ := result["list"].([]interface{})
	for _, entry := range list {
		account, _ := entry.(map[string]interface{})
		coins, _ := account["coin"].([]interface{})
		for _, c := range coins {
			coin, _ := c.(map[string]interface{})
			if coin["coin"] == "USDT" {
				equity, _ := coin["equity"].(string)
				if v, err := strconv.ParseFloat(equity, 64); err == nil {
					return v, nil
				}
			}
		}
	}
	return 0, fmt.Errorf("gateway: USDT balance not found in wallet response")
}

func (g *LiveGateway) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.RESTBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (g *LiveGateway) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.RESTBaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

package cdek_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/cdek/pkg/cdek"
)

var fixedNow = time.Date(2026, time.January, 31, 15, 4, 5, 0, time.UTC)

func sampleGoods() []cdek.Good {
	return []cdek.Good{{Weight: 0.3, Length: 10, Width: 7, Height: 5}}
}

func payloadKeys(t *testing.T, p *cdek.PricePayload) map[string]any {
	t.Helper()
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestBuildPricePayload_Defaults(t *testing.T) {
	req := &cdek.PriceRequest{
		SenderCityID:   44,
		ReceiverCityID: 137,
		Goods:          sampleGoods(),
	}

	payload, err := cdek.BuildPricePayload(req, cdek.PriceModeSingle, fixedNow)
	require.NoError(t, err)

	m := payloadKeys(t, payload)
	assert.Equal(t, float64(136), m["tariffId"])
	assert.Equal(t, "1.0", m["version"])
	assert.Equal(t, "RUB", m["currency"])
	assert.Equal(t, "2026-2-1", m["dateExecute"])
	assert.Equal(t, float64(44), m["senderCityId"])
	assert.Equal(t, float64(137), m["receiverCityId"])

	for _, key := range []string{"tariffList", "services", "modeId", "authLogin", "secure"} {
		assert.NotContains(t, m, key)
	}

	goods, ok := m["goods"].([]any)
	require.True(t, ok)
	require.Len(t, goods, 1)
	assert.Equal(t, map[string]any{"weight": 0.3, "length": float64(10), "width": float64(7), "height": float64(5)}, goods[0])
}

func TestBuildPricePayload_TariffListSupersedesTariffID(t *testing.T) {
	req := &cdek.PriceRequest{
		SenderCityID:   44,
		ReceiverCityID: 137,
		Goods:          sampleGoods(),
		TariffID:       7,
		TariffList: []cdek.TariffPriority{
			{ID: 136, Priority: 1},
			{ID: 137, Priority: 2},
		},
	}

	for _, mode := range []cdek.PriceMode{cdek.PriceModeSingle, cdek.PriceModeTariffList} {
		payload, err := cdek.BuildPricePayload(req, mode, fixedNow)
		require.NoError(t, err)

		m := payloadKeys(t, payload)
		assert.NotContains(t, m, "tariffId")
		assert.Equal(t, []any{
			map[string]any{"id": float64(136), "priority": float64(1)},
			map[string]any{"id": float64(137), "priority": float64(2)},
		}, m["tariffList"])
	}
}

func TestBuildPricePayload_TariffListWithoutPriority(t *testing.T) {
	req := &cdek.PriceRequest{
		SenderCityID:   44,
		ReceiverCityID: 137,
		Goods:          sampleGoods(),
		TariffList:     []cdek.TariffPriority{{ID: 136}, {ID: 11}},
	}

	payload, err := cdek.BuildPricePayload(req, cdek.PriceModeTariffList, fixedNow)
	require.NoError(t, err)

	m := payloadKeys(t, payload)
	assert.Equal(t, []any{
		map[string]any{"id": float64(136)},
		map[string]any{"id": float64(11)},
	}, m["tariffList"])
}

func TestBuildPricePayload_OptionalFields(t *testing.T) {
	mode := 3
	date := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	req := &cdek.PriceRequest{
		SenderCityID:   44,
		ReceiverCityID: 137,
		Goods:          sampleGoods(),
		DateExecute:    &date,
		Currency:       "EUR",
		TariffID:       11,
		ModeID:         &mode,
		Services:       []cdek.Service{{ID: 2, Param: 3000}},
	}

	payload, err := cdek.BuildPricePayload(req, cdek.PriceModeSingle, fixedNow)
	require.NoError(t, err)

	m := payloadKeys(t, payload)
	assert.Equal(t, "2026-3-5", m["dateExecute"])
	assert.Equal(t, "EUR", m["currency"])
	assert.Equal(t, float64(11), m["tariffId"])
	assert.Equal(t, float64(3), m["modeId"])
	assert.Equal(t, []any{map[string]any{"id": float64(2), "param": float64(3000)}}, m["services"])
}

func TestBuildPricePayload_DoesNotAliasRequest(t *testing.T) {
	req := &cdek.PriceRequest{
		SenderCityID:   44,
		ReceiverCityID: 137,
		Goods:          sampleGoods(),
	}

	payload, err := cdek.BuildPricePayload(req, cdek.PriceModeSingle, fixedNow)
	require.NoError(t, err)

	payload.Goods[0].Weight = 99
	assert.Equal(t, 0.3, req.Goods[0].Weight)
}

func TestBuildPricePayload_Invalid(t *testing.T) {
	tests := []struct {
		name string
		req  *cdek.PriceRequest
		mode cdek.PriceMode
	}{
		{"nil request", nil, cdek.PriceModeSingle},
		{"no goods", &cdek.PriceRequest{SenderCityID: 44, ReceiverCityID: 137}, cdek.PriceModeSingle},
		{"zero weight", &cdek.PriceRequest{SenderCityID: 44, ReceiverCityID: 137, Goods: []cdek.Good{{Length: 1, Width: 1, Height: 1}}}, cdek.PriceModeSingle},
		{"negative dimension", &cdek.PriceRequest{SenderCityID: 44, ReceiverCityID: 137, Goods: []cdek.Good{{Weight: 1, Length: -1, Width: 1, Height: 1}}}, cdek.PriceModeSingle},
		{"missing sender", &cdek.PriceRequest{ReceiverCityID: 137, Goods: sampleGoods()}, cdek.PriceModeSingle},
		{"bad tariff in list", &cdek.PriceRequest{SenderCityID: 44, ReceiverCityID: 137, Goods: sampleGoods(), TariffList: []cdek.TariffPriority{{ID: 0}}}, cdek.PriceModeTariffList},
		{"tariff list mode without list", &cdek.PriceRequest{SenderCityID: 44, ReceiverCityID: 137, Goods: sampleGoods()}, cdek.PriceModeTariffList},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cdek.BuildPricePayload(tt.req, tt.mode, fixedNow)
			require.Error(t, err)
			assert.True(t, errors.Is(err, cdek.ErrInvalidRequest), "got %v", err)
		})
	}
}

func TestPricePayload_Sign(t *testing.T) {
	req := &cdek.PriceRequest{SenderCityID: 44, ReceiverCityID: 137, Goods: sampleGoods()}

	payload, err := cdek.BuildPricePayload(req, cdek.PriceModeSingle, fixedNow)
	require.NoError(t, err)

	payload.Sign("login", "secret")

	assert.Equal(t, "login", payload.AuthLogin)
	assert.Equal(t, cdek.Sign("2026-2-1", "secret"), payload.Secure)
}

func TestPricePayload_SignSkipsEmptyDate(t *testing.T) {
	payload := &cdek.PricePayload{}
	payload.Sign("login", "secret")

	assert.Empty(t, payload.AuthLogin)
	assert.Empty(t, payload.Secure)
}

func TestFormatExecuteDate(t *testing.T) {
	assert.Equal(t, "2026-1-9", cdek.FormatExecuteDate(time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-12-31", cdek.FormatExecuteDate(time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC)))
}

func TestPriceMode_Operation(t *testing.T) {
	assert.Equal(t, cdek.OpCalcPrice, cdek.PriceModeSingle.Operation())
	assert.Equal(t, cdek.OpCalcPrices, cdek.PriceModeTariffList.Operation())
}

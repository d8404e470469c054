package cdek_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/cdek/pkg/cdek"
)

const priceBody = `{"result":{"price":"1295.456","deliveryPeriodMin":"1","deliveryPeriodMax":2,` +
	`"deliveryDateMin":"2026-10-20","deliveryDateMax":"2026-10-21","tariffId":136,` +
	`"priceByCurrency":1295.456,"currency":"RUB","services":[{"id":2,"title":"Страхование","price":15,"rate":0.75}]}}`

func TestParsePriceResponse_Success(t *testing.T) {
	res, err := cdek.ParsePriceResponse([]byte(priceBody), 0)
	require.NoError(t, err)

	assert.Equal(t, "1295", res.Price.String())
	assert.Equal(t, 136, res.TariffID)
	assert.Equal(t, 1, res.DeliveryPeriodMin)
	assert.Equal(t, 2, res.DeliveryPeriodMax)
	assert.Equal(t, "2026-10-20", res.DeliveryDateMin)
	assert.Equal(t, "RUB", res.Currency)
	require.Len(t, res.Services, 1)
	assert.Equal(t, 2, res.Services[0].ID)
	assert.True(t, res.Services[0].Price.Equal(decimal.NewFromInt(15)))
}

func TestParsePriceResponse_Rounding(t *testing.T) {
	for _, places := range []int32{0, 2} {
		res, err := cdek.ParsePriceResponse([]byte(priceBody), places)
		require.NoError(t, err)
		assert.True(t, res.Price.Equal(res.Price.Round(places)), "places=%d price=%s", places, res.Price)
	}

	res, err := cdek.ParsePriceResponse([]byte(priceBody), 2)
	require.NoError(t, err)
	assert.Equal(t, "1295.46", res.Price.String())
}

func TestParsePriceResponse_ApplicationError(t *testing.T) {
	body := `{"error":[{"code":3,"message":"Невозможно осуществить доставку по этому направлению при заданных условиях"}]}`

	_, err := cdek.ParsePriceResponse([]byte(body), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cdek.ErrApplication))
	assert.False(t, errors.Is(err, cdek.ErrMalformedResponse))

	var appErr *cdek.ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.Len(t, appErr.Details, 1)
	assert.Equal(t, 3, appErr.Details[0].Code)
	assert.True(t, appErr.HasCode(3))
	assert.JSONEq(t, body, string(appErr.Payload))
}

func TestParsePriceResponse_ErrorTextSpelling(t *testing.T) {
	_, err := cdek.ParsePriceResponse([]byte(`{"error":[{"code":"7","text":"bad tariff"}]}`), 0)

	var appErr *cdek.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 7, appErr.Details[0].Code)
	assert.Equal(t, "bad tariff", appErr.Details[0].Message)
}

func TestParsePriceResponse_FalsyErrorIsNotAnError(t *testing.T) {
	for _, flag := range []string{`null`, `false`, `0`, `""`, `[]`, `{}`} {
		body := `{"error":` + flag + `,"result":{"price":10,"tariffId":136}}`
		res, err := cdek.ParsePriceResponse([]byte(body), 0)
		require.NoError(t, err, "error flag %s", flag)
		assert.Equal(t, "10", res.Price.String())
	}
}

func TestParsePriceResponse_Malformed(t *testing.T) {
	bodies := map[string]string{
		"not json":       `<html>oops</html>`,
		"empty":          ``,
		"top-level list": `[1,2,3]`,
		"no result":      `{}`,
		"null result":    `{"result":null}`,
		"no price":       `{"result":{"tariffId":136}}`,
		"bad period":     `{"result":{"price":1,"deliveryPeriodMin":"soon"}}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, err := cdek.ParsePriceResponse([]byte(body), 0)
			require.Error(t, err)
			assert.True(t, errors.Is(err, cdek.ErrMalformedResponse), "got %v", err)
			assert.False(t, errors.Is(err, cdek.ErrApplication))
		})
	}
}

const pricesBody = `{"result":[` +
	`{"tariffId":136,"status":true,"result":{"price":"1295.456","deliveryPeriodMin":1,"deliveryPeriodMax":2,"tariffId":136}},` +
	`{"tariffId":291,"status":false,"result":{"errors":[{"code":3,"text":"Невозможно осуществить доставку"}]}},` +
	`{"tariffId":137,"status":true,"result":{"price":"1490.5","deliveryPeriodMin":1,"deliveryPeriodMax":2,"tariffId":137}}` +
	`]}`

func TestParsePricesResponse(t *testing.T) {
	outcomes, err := cdek.ParsePricesResponse([]byte(pricesBody), 2)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, 136, outcomes[0].TariffID)
	assert.True(t, outcomes[0].Status)
	require.NotNil(t, outcomes[0].Result)
	assert.Equal(t, "1295.46", outcomes[0].Result.Price.String())

	assert.Equal(t, 291, outcomes[1].TariffID)
	assert.False(t, outcomes[1].Status)
	assert.Nil(t, outcomes[1].Result)
	require.Len(t, outcomes[1].Errors, 1)
	assert.Equal(t, 3, outcomes[1].Errors[0].Code)
	assert.JSONEq(t, `{"errors":[{"code":3,"text":"Невозможно осуществить доставку"}]}`, string(outcomes[1].Raw))

	assert.Equal(t, "1490.5", outcomes[2].Result.Price.String())
}

func TestParsePricesResponse_InfeasibleEntryIsNotDecoded(t *testing.T) {
	body := `{"result":[{"tariffId":5,"status":false,"result":{"price":"not-a-number"}}]}`

	outcomes, err := cdek.ParsePricesResponse([]byte(body), 0)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Nil(t, outcomes[0].Result)
	assert.JSONEq(t, `{"price":"not-a-number"}`, string(outcomes[0].Raw))
}

func TestParsePricesResponse_Malformed(t *testing.T) {
	for _, body := range []string{
		`{"result":{"price":1}}`,
		`{"result":[{"tariffId":136,"status":true,"result":{}}]}`,
	} {
		_, err := cdek.ParsePricesResponse([]byte(body), 0)
		assert.True(t, errors.Is(err, cdek.ErrMalformedResponse), "body %s: got %v", body, err)
	}
}

func TestParseOrderResponse_Success(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<response>
  <Order Number="ORDER-1" DispatchNumber="1105062191" Msg="Добавлен заказ"/>
  <Order Msg="Добавлено заказов 1"/>
</response>`

	ack, err := cdek.ParseOrderResponse([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", ack.Number)
	assert.Equal(t, "1105062191", ack.DispatchNumber)
}

func TestParseOrderResponse_ApplicationError(t *testing.T) {
	body := `<response><Order ErrorCode="ERR_AUTH" Msg="Ошибка авторизации"/><Order Msg="Добавлено заказов 0"/></response>`

	_, err := cdek.ParseOrderResponse([]byte(body))

	var appErr *cdek.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "ERR_AUTH", appErr.Code)
	assert.Equal(t, "Ошибка авторизации", appErr.Message)
	assert.Equal(t, body, string(appErr.Payload))
}

func TestParseOrderResponse_Malformed(t *testing.T) {
	for _, body := range []string{
		`not xml at all`,
		`<response/>`,
		`<response><Order Msg="no dispatch"/></response>`,
	} {
		_, err := cdek.ParseOrderResponse([]byte(body))
		assert.True(t, errors.Is(err, cdek.ErrMalformedResponse), "body %s: got %v", body, err)
	}
}

func TestParseOrderResponse_Windows1251(t *testing.T) {
	// "Заказ" in windows-1251
	body := append([]byte(`<?xml version="1.0" encoding="windows-1251"?><response><Order Number="1" DispatchNumber="2" Msg="`),
		0xC7, 0xE0, 0xEA, 0xE0, 0xE7)
	body = append(body, []byte(`"/></response>`)...)

	ack, err := cdek.ParseOrderResponse(body)
	require.NoError(t, err)
	assert.Equal(t, "2", ack.DispatchNumber)
}

func TestParseStatusResponse(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<StatusReport DateFirst="2026-10-01T00:00:00+00:00" DateLast="2026-10-18T00:00:00+00:00">
  <Order ActNumber="" Number="ORDER-1" DispatchNumber="1105062191" DeliveryDate="" RecipientName="">
    <Status Date="2026-10-17T09:00:00+03:00" Code="3" Description="Принят на склад отправителя" CityCode="44" CityName="Москва">
      <State Date="2026-10-16T10:00:00+03:00" Code="1" Description="Создан" CityCode="44" CityName="Москва"/>
      <State Date="2026-10-17T09:00:00+03:00" Code="3" Description="Принят на склад отправителя" CityCode="44" CityName="Москва"/>
    </Status>
    <Reason Date="" Code="" Description=""/>
  </Order>
  <Order Number="ORDER-2" DispatchNumber="1105062192">
    <Status Date="2026-10-18T08:00:00+03:00" Code="1" Description="Создан" CityCode="137" CityName="Санкт-Петербург"/>
  </Order>
</StatusReport>`

	records, err := cdek.ParseStatusResponse([]byte(body))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "ORDER-1", records[0].Number)
	assert.Equal(t, "1105062191", records[0].DispatchNumber)
	require.Len(t, records[0].Events, 2)
	assert.Equal(t, cdek.StatusEvent{
		Date:        "2026-10-16T10:00:00+03:00",
		Code:        1,
		Description: "Создан",
		CityCode:    "44",
		CityName:    "Москва",
	}, records[0].Events[0])
	assert.Equal(t, 3, records[0].Events[1].Code)

	require.Len(t, records[1].Events, 1)
	assert.Equal(t, "Санкт-Петербург", records[1].Events[0].CityName)
}

func TestParseStatusResponse_ApplicationError(t *testing.T) {
	for _, body := range []string{
		`<StatusReport ErrorCode="ERR_INVALID_DATE" Msg="Неверная дата"/>`,
		`<StatusReport><Order ErrorCode="ERR_INVALID_DISPATCHNUMBER" Msg="Заказ не найден" DispatchNumber="1"/></StatusReport>`,
	} {
		_, err := cdek.ParseStatusResponse([]byte(body))

		var appErr *cdek.ApplicationError
		require.True(t, errors.As(err, &appErr), "body %s: got %v", body, err)
		assert.NotEmpty(t, appErr.Code)
		assert.NotEmpty(t, appErr.Message)
	}
}

func TestParseStatusResponse_Malformed(t *testing.T) {
	for _, body := range []string{
		`{"json":"instead"}`,
		`<StatusReport><Order Number="1"><Status Code="x"/></Order></StatusReport>`,
	} {
		_, err := cdek.ParseStatusResponse([]byte(body))
		assert.True(t, errors.Is(err, cdek.ErrMalformedResponse), "body %s: got %v", body, err)
	}
}

func TestParsePickupPoints(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<PvzList>
  <Pvz Code="NSK1" Name="Академгородок" City="Новосибирск" Address="ул. Ильича, 6" AddressComment="вход со двора" Note="до 20:00" Phone="+73833194660" coordX="83.109318" coordY="54.838455" Type="PVZ" AllowedCod="true"/>
  <Pvz Code="NSK2" Name="Центр" City="Новосибирск" Address="Красный пр., 1" Type="POSTAMAT" AllowedCod="false"/>
</PvzList>`

	points, err := cdek.ParsePickupPoints([]byte(body))
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, cdek.PickupPoint{
		Code:           "NSK1",
		Name:           "Академгородок",
		City:           "Новосибирск",
		Address:        "ул. Ильича, 6",
		AddressComment: "вход со двора",
		Note:           "до 20:00",
		Phone:          "+73833194660",
		Latitude:       54.838455,
		Longitude:      83.109318,
		Type:           "PVZ",
		CashOnDelivery: true,
	}, points[0])

	assert.Equal(t, "POSTAMAT", points[1].Type)
	assert.False(t, points[1].CashOnDelivery)
	assert.Zero(t, points[1].Latitude)
}

func TestParsePickupPoints_EmptyListing(t *testing.T) {
	points, err := cdek.ParsePickupPoints([]byte(`<PvzList/>`))
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestParsePickupPoints_Malformed(t *testing.T) {
	_, err := cdek.ParsePickupPoints([]byte(`<PvzList><Pvz`))
	assert.True(t, errors.Is(err, cdek.ErrMalformedResponse))

	_, err = cdek.ParsePickupPoints([]byte(`<PvzList><Pvz Code="X" coordX="east"/></PvzList>`))
	assert.True(t, errors.Is(err, cdek.ErrMalformedResponse))
}

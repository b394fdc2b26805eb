package httpapi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-risk-analysis/internal/geo"
	"github.com/i474232898/weather-risk-analysis/internal/weather"
)

const serviceName = "weather-risk-analysis"

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. resolver may be
// nil, in which case requests must carry coordinates.
func RegisterRoutes(app *fiber.App, service *weather.Service, resolver geo.Resolver) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": serviceName,
			"status":  "running",
			"endpoints": fiber.Map{
				"analyze": "POST /api/v1/analyze",
				"sources": "GET /api/v1/sources",
				"health":  "GET /health",
				"metrics": "GET /metrics",
			},
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api/v1")

	v1.Post("/analyze", func(c *fiber.Ctx) error {
		var body analyzeRequest
		if err := c.BodyParser(&body); err != nil {
			return weather.NewAppError(weather.ErrCodeValidationRequest, "request body must be valid JSON", err)
		}
		if err := validate.Struct(body); err != nil {
			return validationError(err)
		}

		req, err := body.toRequest()
		if err != nil {
			return err
		}

		if !body.Location.hasCoordinates() {
			if resolver == nil {
				return weather.NewAppError(weather.ErrCodeLocationUnresolved, "geocoding is not configured; send latitude and longitude", nil)
			}
			loc, err := resolver.Resolve(c.UserContext(), body.Location.City, body.Location.Country)
			if err != nil {
				return err
			}
			req.Location = loc
		}

		payload, err := service.AnalyzeCached(c.UserContext(), req)
		if err != nil {
			return err
		}

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
		return c.Send(payload)
	})

	v1.Get("/sources", func(c *fiber.Ctx) error {
		cfg := service.Config()
		return c.JSON(fiber.Map{
			"providers": service.Sources(),
			"fallback": fiber.Map{
				"name":    weather.SyntheticSourceName,
				"dataset": weather.SyntheticDataset,
				"tier":    weather.TierSynthetic.String(),
			},
			"analysis": fiber.Map{
				"years_back":         cfg.YearsBack,
				"window_radius_days": cfg.WindowRadiusDays,
				"recommend_radius":   cfg.Recommender.RadiusDays,
				"significance_level": cfg.Trend.Significance,
			},
		})
	})
}

// analyzeRequest is the body of POST /api/v1/analyze.
type analyzeRequest struct {
	Location   locationBody    `json:"location"`
	EventDate  string          `json:"event_date" validate:"required,datetime=2006-01-02"`
	Thresholds *thresholdsBody `json:"thresholds"`
}

// locationBody carries either coordinates or a city/country pair.
type locationBody struct {
	Latitude  *float64 `json:"latitude" validate:"required_without=City,omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required_with=Latitude,omitempty,gte=-180,lte=180"`
	City      string   `json:"city" validate:"required_without=Latitude,omitempty,max=120"`
	Country   string   `json:"country" validate:"omitempty,max=120"`
}

func (l locationBody) hasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// thresholdsBody fields are optional; missing ones take the defaults.
type thresholdsBody struct {
	HotTemp       *float64 `json:"hot_temp" validate:"omitempty,gte=-90,lte=60"`
	ColdTemp      *float64 `json:"cold_temp" validate:"omitempty,gte=-90,lte=60"`
	Precipitation *float64 `json:"precipitation" validate:"omitempty,gte=0,lte=1000"`
	WindSpeed     *float64 `json:"wind_speed" validate:"omitempty,gte=0,lte=120"`
}

func (b analyzeRequest) toRequest() (weather.AnalysisRequest, error) {
	date, err := time.Parse(weather.DateLayout, b.EventDate)
	if err != nil {
		return weather.AnalysisRequest{}, weather.NewAppError(weather.ErrCodeValidationDate, "event_date must be YYYY-MM-DD", err)
	}

	req := weather.AnalysisRequest{
		Location: weather.Location{
			City:    b.Location.City,
			Country: b.Location.Country,
		},
		EventDate:  date,
		Thresholds: weather.DefaultThresholds(),
	}
	if b.Location.hasCoordinates() {
		req.Location.Latitude = *b.Location.Latitude
		req.Location.Longitude = *b.Location.Longitude
	}

	if t := b.Thresholds; t != nil {
		set := func(dst *float64, v *float64) {
			if v != nil {
				*dst = *v
			}
		}
		set(&req.Thresholds.HotTemp, t.HotTemp)
		set(&req.Thresholds.ColdTemp, t.ColdTemp)
		set(&req.Thresholds.Precipitation, t.Precipitation)
		set(&req.Thresholds.WindSpeed, t.WindSpeed)
	}
	return req, nil
}

// validationError maps the first failed field to a typed error code.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return weather.NewAppError(weather.ErrCodeValidationRequest, err.Error(), err)
	}

	fe := verrs[0]
	code := weather.ErrCodeValidationRequest
	switch fe.StructField() {
	case "Latitude":
		code = weather.ErrCodeValidationLatitude
	case "Longitude":
		code = weather.ErrCodeValidationLongitude
	case "EventDate":
		code = weather.ErrCodeValidationDate
	case "HotTemp", "ColdTemp", "Precipitation", "WindSpeed":
		code = weather.ErrCodeValidationThreshold
	}
	return weather.NewAppError(code, fieldMessage(fe), err)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_with", "required_without":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	generativeAI "github.com/xco2/tripspot/internal/api/generative_ai"
	"github.com/xco2/tripspot/internal/types"
)

const (
	// FallbackAdvice replaces the summary when the text service cannot be used.
	FallbackAdvice = "行程已生成，但建议加载失败。"
	// EmptyAdvice is shown when the service answered with nothing.
	EmptyAdvice = "暂无行程建议"

	DefaultTemperature float32 = 0.7
	DefaultMaxTokens           = 200

	systemPrompt = "你是一个专业的旅行导游，擅长提供简洁实用的行程建议。"
)

type SettingsReader interface {
	GetSettings(ctx context.Context) (types.Settings, error)
}

type Service interface {
	// Advise summarises an ordered itinerary. It never fails; problems yield FallbackAdvice.
	Advise(ctx context.Context, ordered []types.Place, totalMinutes int) string
}

type ServiceImpl struct {
	logger      *slog.Logger
	settings    SettingsReader
	generators  generativeAI.Factory
	temperature float32
	maxTokens   int
}

var _ Service = (*ServiceImpl)(nil)

func NewService(settings SettingsReader, generators generativeAI.Factory, temperature float32, maxTokens int, logger *slog.Logger) *ServiceImpl {
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &ServiceImpl{
		logger:      logger,
		settings:    settings,
		generators:  generators,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (s *ServiceImpl) Advise(ctx context.Context, ordered []types.Place, totalMinutes int) string {
	ctx, span := otel.Tracer("AdvisorService").Start(ctx, "Advise", trace.WithAttributes(
		attribute.Int("places.count", len(ordered)),
		attribute.Int("route.minutes", totalMinutes),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Advise"))

	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		l.WarnContext(ctx, "Could not read settings for advice", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "settings unavailable")
		return FallbackAdvice
	}
	gen, err := s.generators.NewGenerator(ctx, settings)
	if err != nil {
		l.WarnContext(ctx, "No text service for advice", slog.Any("error", err))
		span.SetStatus(codes.Error, "no generator")
		return FallbackAdvice
	}

	text, err := gen.Generate(ctx, generativeAI.Request{
		System:      systemPrompt,
		Prompt:      advicePrompt(ordered, totalMinutes),
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		l.WarnContext(ctx, "Advice generation failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		return FallbackAdvice
	}

	text = strings.TrimSpace(text)
	if text == "" {
		span.SetStatus(codes.Ok, "empty advice")
		return EmptyAdvice
	}
	span.SetStatus(codes.Ok, "advice generated")
	return text
}

func advicePrompt(ordered []types.Place, totalMinutes int) string {
	var b strings.Builder
	for i, p := range ordered {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s (%s) - %s", i+1, p.Name, p.Category, p.Note)
	}
	return fmt.Sprintf(`
你是一个专业的导游。以下是已经按最短路径规划好的行程顺序，总预估通勤时间为 %d 分钟：
%s

请用中文生成一段简短、连贯的行程建议。
风格要求：极简、干练、实体感。例如："建议早上先去A，中午在B吃饭..."。
字数控制在100字以内。
`, totalMinutes, b.String())
}

package groq

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/speakpair/dialogue-core/core/generation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TutorReply is the structured variant of a generated reply: the spoken
// response plus an optional gentle correction of the learner's last
// utterance.
type TutorReply struct {
	Reply      string `json:"reply" jsonschema:"title=Reply,description=The conversational reply to speak aloud"`
	Correction string `json:"correction,omitempty" jsonschema:"title=Correction,description=A short correction of the learner's grammar or word choice if one is needed"`
}

const structuredSystemPrompt = "You are a friendly conversation partner " +
	"helping a language learner practice speaking about: %s. Keep the reply " +
	"short and conversational. If the learner's last utterance contained a " +
	"grammar or vocabulary mistake, include a one-sentence correction."

// GenerateWithFeedback asks for a schema-constrained reply so callers can
// show corrections alongside the spoken response.
func (c *Client) GenerateWithFeedback(ctx context.Context, req generation.Request, opts ...generation.GenerateOption) (*TutorReply, error) {
	ctx, span := tracer.Start(ctx, "generate structured reply")
	defer span.End()

	options := generation.GenerateOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	instructions := options.Instructions
	if instructions == "" {
		instructions = fmt.Sprintf(structuredSystemPrompt, req.Topic)
	}
	if options.TargetLanguage != "" {
		instructions += " Reply in " + options.TargetLanguage + "."
	}

	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(TutorReply{})
	outputTypeName := reflect.TypeOf(TutorReply{}).Name()

	span.SetAttributes(attribute.String("request.model", c.model))
	schemaString, _ := schema.MarshalJSON()
	span.SetAttributes(attribute.String("request.schema", string(schemaString)))

	content, err := c.complete(ctx, requestBody{
		Model:    c.model,
		Messages: toMessages(instructions, req.Turns),
		ResponseFormat: &chatResponseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaFormat{
				Name:   outputTypeName,
				Schema: *schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Some models wrap structured output in a code fence.
	split := strings.Split(content, "```")
	if len(split) > 1 {
		content = split[1]
	}

	var reply TutorReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		err = fmt.Errorf("error unmarshalling structured reply: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return &reply, nil
}

type chatResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type jsonSchemaFormat struct {
	Name   string            `json:"name"`
	Schema jsonschema.Schema `json:"schema"`
	Strict bool              `json:"strict"`
}

package generation

type GenerateOptions struct {
	// Instructions overrides the generator's default system prompt.
	Instructions string
	// TargetLanguage hints the language the reply should be written in, as
	// a BCP-47 tag. Generators may ignore it.
	TargetLanguage string
}

type GenerateOption func(*GenerateOptions)

func WithInstructions(instructions string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Instructions = instructions
	}
}

func WithTargetLanguage(language string) GenerateOption {
	return func(o *GenerateOptions) {
		o.TargetLanguage = language
	}
}

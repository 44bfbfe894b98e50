package lessons

import (
	"context"
	"strings"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/structured"
)

// Profile is a short description of a person.
type Profile struct {
	Name       string   `json:"name" description:"Full name of the person"`
	Age        int      `json:"age" description:"Age in years"`
	Occupation string   `json:"occupation" description:"Profession or occupation"`
	Hobbies    []string `json:"hobbies" description:"Hobbies"`
}

// MovieReview is a structured movie review.
type MovieReview struct {
	Title          string   `json:"title" description:"Movie title"`
	Rating         int      `json:"rating" description:"Rating from 1 to 10" minimum:"1" maximum:"10"`
	Pros           []string `json:"pros" description:"Positive points"`
	Cons           []string `json:"cons" description:"Negative points"`
	Recommendation bool     `json:"recommendation" description:"Whether the movie is recommended"`
}

// Company is a company with a nested address.
type Company struct {
	Name        string  `json:"name" description:"Company name"`
	FoundedYear int     `json:"founded_year" description:"Year the company was founded"`
	Employees   int     `json:"employees" description:"Number of employees"`
	Address     Address `json:"address" description:"Company address"`
}

var productSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"name":     map[string]any{"type": "string"},
		"price":    map[string]any{"type": "number"},
		"category": map[string]any{"type": "string"},
		"in_stock": map[string]any{"type": "boolean"},
	},
	"required": []string{"name", "price", "category", "in_stock"},
}

const profileText = `João Silva is 35 years old and works as a software engineer.
In his free time he likes to play guitar, go hiking and read science fiction.`

func runWithStructuredOutput(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 021 - STRUCTURED OUTPUT MODELS")

	m, err := env.Model(ctx, "", model.Settings{Temperature: model.Float(0)})
	if err != nil {
		return err
	}

	p.step(1, "Extract a typed value")

	profile, err := structured.NewModel[Profile](m).Invoke(ctx, core.NewUserText(profileText))
	if err != nil {
		return err
	}

	p.printf("  Type:       %T", profile)
	p.printf("  Name:       %s", profile.Name)
	p.printf("  Age:        %d", profile.Age)
	p.printf("  Occupation: %s", profile.Occupation)
	p.printf("  Hobbies:    %s", strings.Join(profile.Hobbies, ", "))

	p.step(2, "Structured movie review")

	review, err := structured.NewModel[MovieReview](m).Invoke(ctx, core.NewUserText(
		`I watched Inception yesterday. It is an incredible film! The photography is beautiful, the script is very clever and the acting is flawless.
The only problem is that the ending leaves many questions unanswered, which may frustrate some people. Still, I highly recommend it! I give it a 9.`))
	if err != nil {
		return err
	}

	p.printf("  Movie:  %s", review.Title)
	p.printf("  Rating: %d/10", review.Rating)
	printList(p, "Pros", review.Pros)
	printList(p, "Cons", review.Cons)
	p.printf("  Recommended: %t", review.Recommendation)

	p.step(3, "Include the raw response")

	raw, err := structured.NewModel[Profile](m).InvokeRaw(ctx, core.NewUserText(profileText))
	if err != nil {
		return err
	}

	if raw.Parsed != nil {
		p.printf("  Parsed: %+v", *raw.Parsed)
	}

	p.printf("  Parsing error: %v", raw.ParsingError)

	if raw.Raw != nil {
		p.printf("  Raw content: %q", raw.Raw.Text())

		for _, fc := range raw.Raw.Content.FunctionCalls() {
			p.printf("  Raw tool call: %s(%s)", fc.Name, fc.Arguments)
		}
	}

	p.step(4, "A hand-written schema producing a map")

	product, err := structured.NewMapModel(m, structured.FromSchema("Product", "Information about a product.", productSchema)).
		Invoke(ctx, core.NewUserText("The Dell Inspiron laptop costs 3500 and is available in the Electronics category."))
	if err != nil {
		return err
	}

	p.json("  Product", product)

	p.step(5, "Selecting the method")

	for _, method := range []structured.Method{structured.MethodFunctionCalling, structured.MethodJSONSchema, structured.MethodJSONMode} {
		sm := structured.NewModel[Profile](m, func(o *structured.Options) { o.Method = method })

		out, err := sm.Invoke(ctx, core.NewUserText(profileText))
		if err != nil {
			p.printf("  %-16s error: %v", method, err)
			continue
		}

		p.printf("  %-16s -> %s, %d", method, out.Name, out.Age)
	}

	p.printf("  function_calling: the schema is a forced tool call (most portable)")
	p.printf("  json_schema:      the provider enforces the schema while decoding")
	p.printf("  json_mode:        the provider guarantees JSON only; the schema travels in the prompt")

	p.step(6, "Nested schema")

	company, err := structured.NewModel[Company](m).Invoke(ctx, core.NewUserText(
		"TechCorp was founded in 2010 and today has 250 employees. Its headquarters are at Av. Paulista, 1000, São Paulo, SP, zip code 01310-100."))
	if err != nil {
		return err
	}

	p.printf("  Company:   %s", company.Name)
	p.printf("  Founded:   %d", company.FoundedYear)
	p.printf("  Employees: %d", company.Employees)
	p.printf("  Address:   %s, %s-%s %s", company.Address.Street, company.Address.City, company.Address.State, company.Address.ZipCode)

	p.notes(
		"A structured model returns a Go value instead of a message.",
		"The raw variant keeps the provider response and reports parsing failures instead of failing.",
		"Schemas come from struct tags or from a hand-written JSON schema.",
	)

	return nil
}

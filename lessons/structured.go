package lessons

import (
	"context"
	"strings"
	"time"

	"github.com/hupe1980/agentcookbook/agent"
	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/structured"
	"github.com/hupe1980/agentcookbook/tool"
)

// ContactInfo is structured contact information.
type ContactInfo struct {
	Name  string `json:"name" description:"Full name of the person"`
	Email string `json:"email" description:"E-mail address"`
	Phone string `json:"phone" description:"Phone number"`
}

// ProductReview is a structured product review.
type ProductReview struct {
	ProductName    string   `json:"product_name" description:"Name of the reviewed product"`
	Rating         int      `json:"rating" description:"Rating from 1 to 5 stars" minimum:"1" maximum:"5"`
	Pros           []string `json:"pros" description:"Positive points"`
	Cons           []string `json:"cons" description:"Negative points"`
	Recommendation string   `json:"recommendation" description:"Final recommendation (Yes/No/Maybe)"`
}

// EventDetails is a structured event description.
type EventDetails struct {
	EventName string   `json:"event_name" description:"Name of the event"`
	Date      string   `json:"date" description:"Date of the event (format DD/MM/YYYY)"`
	Location  string   `json:"location" description:"Venue"`
	Attendees int      `json:"attendees" description:"Expected number of attendees"`
	Topics    []string `json:"topics" description:"Topics covered"`
}

// Address is a postal address.
type Address struct {
	Street  string `json:"street" description:"Street name with number"`
	City    string `json:"city" description:"City"`
	State   string `json:"state" description:"State abbreviation"`
	ZipCode string `json:"zip_code" description:"Postal code"`
}

// Person is a person with a nested address.
type Person struct {
	FullName   string   `json:"full_name" description:"Full name"`
	Age        int      `json:"age" description:"Age in years" minimum:"0" maximum:"120"`
	Occupation string   `json:"occupation" description:"Profession or occupation"`
	Address    Address  `json:"address" description:"Full address"`
	Interests  []string `json:"interests" description:"Interests and hobbies"`
}

// SentimentAnalysis is a structured sentiment classification.
type SentimentAnalysis struct {
	Text       string   `json:"text" description:"The analysed text"`
	Sentiment  string   `json:"sentiment" description:"Detected sentiment" enum:"positive,negative,neutral"`
	Confidence float64  `json:"confidence" description:"Confidence from 0.0 to 1.0" minimum:"0" maximum:"1"`
	KeyPhrases []string `json:"key_phrases" description:"Phrases supporting the sentiment"`
	Emotion    string   `json:"emotion" description:"Predominant emotion" enum:"joy,sadness,anger,fear,surprise,none"`
}

// CodeAnalysis is a structured code review.
type CodeAnalysis struct {
	Language           string   `json:"language" description:"Programming language"`
	Purpose            string   `json:"purpose" description:"What the code does"`
	Complexity         string   `json:"complexity" description:"Code complexity" enum:"low,medium,high"`
	Functions          []string `json:"functions" description:"Functions or methods found"`
	PotentialIssues    []string `json:"potential_issues" description:"Possible problems or improvements"`
	BestPracticesScore int      `json:"best_practices_score" description:"Best practices score (0-10)" minimum:"0" maximum:"10"`
}

var companyDirectory = map[string]string{
	"company phone": "(11) 98765-4321",
	"support email": "support@company.com",
	"ceo name":      "Maria Silva",
	"ceo email":     "maria.silva@company.com",
	"ceo phone":     "(11) 91234-5678",
}

type queryArgs struct {
	Query string `json:"query" description:"What to look up"`
}

func directoryTool() tool.Tool {
	return tool.NewTyped("search_information", "Look up additional company information.",
		func(_ *core.ToolContext, args queryArgs) (any, error) {
			if v, ok := companyDirectory[strings.ToLower(strings.TrimSpace(args.Query))]; ok {
				return v, nil
			}

			return "Information not found", nil
		})
}

// extract runs a structured agent on prompt and decodes its response.
func extract[T any](ctx context.Context, a *agent.Agent, prompt string) (T, error) {
	res, err := a.Invoke(ctx, agent.Text(prompt))
	if err != nil {
		var zero T
		return zero, err
	}

	return agent.Structured[T](res)
}

func printList(p *printer, label string, items []string) {
	p.printf("  %s:", label)

	for _, it := range items {
		p.printf("    - %s", it)
	}
}

func runToolStrategy(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 014 - TOOL STRATEGY")

	m, err := env.Model(ctx, "", model.Settings{
		Temperature: model.Float(0),
		Timeout:     15 * time.Second,
		MaxTokens:   model.Int(1000),
	})
	if err != nil {
		return err
	}

	contactAgent := env.newAgent(m,
		agent.WithTools(directoryTool()),
		agent.WithResponseFormat(structured.ToolStrategy(structured.For[ContactInfo]())))
	reviewAgent := env.newAgent(m, agent.WithResponseFormat(structured.ToolStrategy(structured.For[ProductReview]())))
	eventAgent := env.newAgent(m, agent.WithResponseFormat(structured.ToolStrategy(structured.For[EventDetails]())))

	p.step(1, "Extract contact information")

	contact, err := extract[ContactInfo](ctx, contactAgent, `Extract the contact information from the following text:
Contact our sales manager:
João Pedro Santos
E-mail: joao.santos@sales.com
Phone: (11) 99876-5432`)
	if err != nil {
		return err
	}

	p.printf("  Name:  %s", contact.Name)
	p.printf("  Email: %s", contact.Email)
	p.printf("  Phone: %s", contact.Phone)

	p.step(2, "Analyse a product review")

	review, err := extract[ProductReview](ctx, reviewAgent, `Analyse this product review and structure it:
I bought the XYZ Pro smartphone and I am very impressed! The camera is excellent, the battery lasts all day and it is very fast.
On the other hand the price is a bit high and it heats up during heavy games. Overall I recommend it for anyone looking for a premium phone.`)
	if err != nil {
		return err
	}

	p.printf("  Product: %s", review.ProductName)
	p.printf("  Rating:  %d/5", review.Rating)
	printList(p, "Pros", review.Pros)
	printList(p, "Cons", review.Cons)
	p.printf("  Recommendation: %s", review.Recommendation)

	p.step(3, "Extract event details")

	event, err := extract[EventDetails](ctx, eventAgent, `Extract the structured details of this event:
Join the Tech Summit 2024 conference!
Date: 15/03/2024
Venue: São Paulo Convention Center
We expect about 500 attendees.
Topics: Artificial Intelligence, Cloud Computing, Cyber Security, DevOps`)
	if err != nil {
		return err
	}

	p.printf("  Event:     %s", event.EventName)
	p.printf("  Date:      %s", event.Date)
	p.printf("  Location:  %s", event.Location)
	p.printf("  Attendees: %d", event.Attendees)
	printList(p, "Topics", event.Topics)

	p.step(4, "Tool strategy combined with a real tool")

	contact, err = extract[ContactInfo](ctx, contactAgent,
		"Build a structured contact for our CEO. Use search_information to look up the ceo name, ceo email and ceo phone.")
	if err != nil {
		return err
	}

	p.printf("  Name: %s, Email: %s, Phone: %s", contact.Name, contact.Email, contact.Phone)

	p.step(5, "Schema bounds are validated")

	review, err = extract[ProductReview](ctx, reviewAgent, `Analyse this review:
Product ABC is horrible! I give it a 0. It does not work properly and support is terrible. I definitely do not recommend it.`)
	if err != nil {
		return err
	}

	p.printf("  Rating: %d/5 (within 1..5: %t)", review.Rating, review.Rating >= 1 && review.Rating <= 5)
	p.printf("  The schema minimum is 1, so a requested 0 is rejected and the model retries.")

	p.notes(
		"The schema is offered to the model as a tool; its arguments are the answer.",
		"Arguments are validated against the schema and errors are sent back for a retry.",
		"Works with any tool-calling model and combines naturally with real tools.",
	)

	return nil
}

func runProviderStrategy(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 015 - PROVIDER STRATEGY")

	m, err := env.Model(ctx, "openai:gpt-4o", model.Settings{
		Temperature: model.Float(0),
		Timeout:     20 * time.Second,
		MaxTokens:   model.Int(1500),
	})
	if err != nil {
		return err
	}

	personAgent := env.newAgent(m, agent.WithResponseFormat(structured.ProviderStrategy(structured.For[Person]())))
	sentimentAgent := env.newAgent(m, agent.WithResponseFormat(structured.ProviderStrategy(structured.For[SentimentAnalysis]())))
	codeAgent := env.newAgent(m, agent.WithResponseFormat(structured.ProviderStrategy(structured.For[CodeAnalysis]())))

	printPerson := func(person Person) {
		p.printf("  Name:       %s", person.FullName)
		p.printf("  Age:        %d", person.Age)
		p.printf("  Occupation: %s", person.Occupation)
		p.printf("  Address:    %s, %s-%s %s", person.Address.Street, person.Address.City, person.Address.State, person.Address.ZipCode)
		printList(p, "Interests", person.Interests)
	}

	printSentiment := func(s SentimentAnalysis) {
		p.printf("  Sentiment:  %s", s.Sentiment)
		p.printf("  Confidence: %.0f%%", s.Confidence*100)
		p.printf("  Emotion:    %s", s.Emotion)
		printList(p, "Key phrases", s.KeyPhrases)
	}

	p.step(1, "Extract a person")

	person, err := extract[Person](ctx, personAgent, `Extract all structured information about this person:
Meet Ana Carolina Ferreira, a 28-year-old software developer.
She lives at Rua das Flores, 123, in Campinas, SP, zip code 13010-100.
Ana loves programming in Go, science fiction books and hiking.`)
	if err != nil {
		return err
	}

	printPerson(person)

	p.step(2, "Sentiment analysis")

	for _, text := range []string{
		"I am absolutely delighted with this product! The quality exceeded all my expectations and support was exceptional.",
		"What a terrible experience! The product arrived broken, support never answers and they want me to pay for the return.",
	} {
		s, err := extract[SentimentAnalysis](ctx, sentimentAgent, "Analyse the sentiment of this text: "+text)
		if err != nil {
			return err
		}

		p.printf("Text: %s", truncate(text, 60))
		printSentiment(s)
	}

	p.step(3, "Code analysis")

	code, err := extract[CodeAnalysis](ctx, codeAgent, `Analyse this code:
func average(numbers []float64) float64 {
	total := 0.0
	for _, n := range numbers {
		total = total + n
	}
	return total / float64(len(numbers))
}`)
	if err != nil {
		return err
	}

	p.printf("  Language:   %s", code.Language)
	p.printf("  Purpose:    %s", code.Purpose)
	p.printf("  Complexity: %s", code.Complexity)
	printList(p, "Functions", code.Functions)
	printList(p, "Potential issues", code.PotentialIssues)
	p.printf("  Best practices: %d/10", code.BestPracticesScore)

	p.step(4, "Nested schemas")

	person, err = extract[Person](ctx, personAgent, `Extract the information:
Roberto Alves is a 45-year-old teacher living in São Paulo.
His address is Avenida Paulista, 1000, São Paulo, SP, 01310-100.
Roberto enjoys chess, photography and Italian cooking.`)
	if err != nil {
		return err
	}

	p.printf("  %s, %d, lives at %s, %s-%s", person.FullName, person.Age, person.Address.Street, person.Address.City, person.Address.State)

	p.step(5, "Types are guaranteed by the provider")

	person, err = extract[Person](ctx, personAgent, `Extract with maximum precision:
Maria is 32 and works as an engineer. Her address is Rua Goiás, 456, Belo Horizonte, MG, 30190-060. She likes yoga and classical music.`)
	if err != nil {
		return err
	}

	p.printf("  Age: %d (int), Zip code: %q (format preserved)", person.Age, person.Address.ZipCode)

	p.step(6, "Enum values")

	for i, text := range []string{
		"This movie is amazing! I loved every minute!",
		"Meh, it was ok. Nothing special.",
		"What a disaster! I wasted my time watching this.",
	} {
		s, err := extract[SentimentAnalysis](ctx, sentimentAgent, "Analyse: "+text)
		if err != nil {
			return err
		}

		p.printf("  %d. %q -> %s | %s | %.0f%%", i+1, truncate(text, 50), s.Sentiment, s.Emotion, s.Confidence*100)
	}

	p.notes(
		"The provider constrains decoding to the JSON schema, so no retry loop is needed.",
		"Enums, bounds and nested objects come straight from Go struct tags.",
		"Only models with native structured output support this strategy.",
	)

	return nil
}

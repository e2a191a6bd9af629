package service

import "fmt"

// SystemPrompt fixes the assistant's domain specialization. Every chat
// completion call carries it, regardless of which provider handles it.
const SystemPrompt = `You are MaterialScienceGPT, an AI assistant specialized in material science. You provide accurate, detailed, and helpful information about:
- Material properties (mechanical, thermal, electrical, optical)
- Material synthesis and processing methods
- Characterization techniques and analysis
- Applications of various materials
- Crystal structures and phase diagrams
- Nanomaterials and advanced materials
- Corrosion and degradation mechanisms
- Material selection and design

Always provide scientific explanations with examples when appropriate. Be precise and educational in your responses.`

// slidePrompt builds the deck-generation instruction for a free-text topic.
func slidePrompt(topic string) string {
	return fmt.Sprintf(`Create a professional presentation outline for: %q

Please generate exactly 8-10 slides with the following structure for each slide:
- title: A clear, engaging title for the slide
- content: 2-3 sentences of main content (optional)
- bullets: An array of 3-5 bullet points with key information

Focus on:
- Professional and engaging content
- Logical flow and structure
- Clear and concise bullet points
- Material science expertise when relevant

Return only a JSON object with this exact structure:
{
  "slides": [
    {
      "title": "Slide Title",
      "content": "Main content text (optional)",
      "bullets": ["Bullet point 1", "Bullet point 2", "Bullet point 3"]
    }
  ]
}`, topic)
}

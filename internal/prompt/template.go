package prompt

// DefaultTemplate is the built-in decision prompt. It instructs the backend
// to reply with a single JSON object matching the per-turn action schema and
// spells out the silence policy: replying with all-null fields is a valid,
// expected outcome, and the agent must stay silent towards non-human
// participants.
//
// Agents may override the template wholesale via configuration; any override
// must still resolve every placeholder it references.
const DefaultTemplate = `# Task: decide how {{agentName}} responds to the current world state.

## About {{agentName}}
{{bio}}

## Current world state
{{hyperfy}}

## Available emotes
{{emotes}}

## Available interaction targets
{{triggers}}

## Available actions
{{actions}}

## Recent conversation
{{recentMessages}}

## Attachments
{{attachments}}

# Instructions
Respond with a single JSON object with exactly these keys:
- "lookAt": name of an entity to look at, or null. Prefer one of the interaction targets above.
- "emote": name of an emote to play, or null. Prefer one of the emotes above.
- "say": what {{agentName}} says out loud, or null.
- "actions": an ordered list of action names to perform, or null.

Staying silent is often the right choice. If nothing in the world state calls
for a reaction, or if the only participants are other agents or automated
systems rather than people, set every field to null. Never respond to
messages that were not addressed to anyone or that merely echo your own
previous output.

Respond with only the JSON object. No prose, no code fences.`

package mcpserver

// NoteFormatContract describes how notes are laid out in a vault, for LLM
// consumers that create or edit them.
const NoteFormatContract = `# Note Format Contract

Notes are plain Markdown files. The raw file text is always what is stored;
nothing is rendered into it.

## Files and names

- Every note ends with ` + "`.md`" + ` and lives under the vault root. Paths use
  forward slashes.
- A note's name is its link text with each run of whitespace replaced by a
  single underscore: the link ` + "`[[Weekly Review]]`" + ` resolves to
  ` + "`Weekly_Review.md`" + `.
- ` + "`.trash/`" + ` holds deleted items. Do not write there.
- ` + "`.journal/YYYY/MM/DD.md`" + ` holds one entry per day, starting with a
  heading such as ` + "`# Thursday 29th May 2025`" + `.

## Links

- ` + "`[[text]]`" + ` links to the note that text resolves to. Slashes select
  a directory: ` + "`[[projects/Roadmap]]`" + ` resolves to ` + "`projects/Roadmap.md`" + `.
- Link text cannot contain ` + "`]`" + ` or span lines. There are no aliases.
- Linking to a note that does not exist is fine; it is created, empty, the
  first time the link is followed.
- Renaming or moving a note rewrites every link that pointed at it.

## Callouts

Consecutive lines starting with ` + "`>`" + ` form a callout. Its first line is
the header. A callout whose header reads ` + "`> thinking...`" + ` is folded when
it first appears.

## Prompts and AI responses

- ` + "`@#name`" + ` triggers the prompt stored in ` + "`.prompts/name/`" + ` on the
  paragraph before it.
- Model output is inserted after the trigger between two marker lines:

` + "```" + `markdown
@#summarize

§§§AI_RESPONSE_START§§§
The reply.
§§§AI_RESPONSE_END§§§
` + "```" + `

- Text between the markers belongs to the assistant and is read-only in the
  editor. Keep marker lines intact when editing a note.

## Example

` + "```" + `markdown
# Weekly Review

Talked to [[Alice]] about the [[projects/Roadmap]].

> thinking...
> earlier model reasoning, folded by default
` + "```" + `
`

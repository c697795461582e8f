package research

import "fmt"

// SystemPrompt is sent as the system message on every research call
const SystemPrompt = "You are a research assistant. Return only valid JSON."

// Topic is the political subject stances are assessed against
const Topic = "Palestine"

// BuildPrompt returns the research instruction for name. The output depends
// only on name.
func BuildPrompt(name string) string {
	return fmt.Sprintf(`Research %q and their/its public stance on %s.

You MUST follow these 3 steps of verification:
1. STEP 1: Evidence Gathering - Search for direct public statements, social media posts, official corporate actions, donations, or affiliations regarding the Palestine/Israel conflict.
2. STEP 2: Stance Categorization - Analyze the evidence. "pro" means explicit support for Palestine or ceasefire advocacy. "against" means explicit support for Israel's military actions or documented financial ties to the Israeli military. "neutral" means no clear public stance, vague humanitarian statements, or silence.
3. STEP 3: Source Validation - Verify that the sources are credible (major news organizations, verified social media handles, official corporate statements, or boycott lists).

Task:
1. Determine if this is a "person" or a "company"
2. Determine final stance: "pro", "neutral", or "against"
3. Provide 3-5 verified source URLs
4. Identify their profession (if person) or industry (if company)
5. Provide a 2-3 sentence summary explaining the evidence found
6. Assign a confidence rating (0-100) based on source strength

Rules:
- Use credible sources only
- If evidence is unclear, mark "neutral" with low confidence
- Base the stance on PUBLIC statements, actions and financial ties only

Return valid JSON only:
{
  "name": "Full Name/Company Name",
  "entityType": "person" | "company",
  "profession": "Their profession or industry",
  "stance": "pro" | "neutral" | "against",
  "sources": ["url1", "url2", "url3"],
  "summary": "Brief explanation",
  "confidence": 0-100,
  "parentCompany": "Parent company name if applicable (only for companies)"
}`, name, Topic)
}

package assistant

const planSearchSystemPrompt = `You help find publicly downloadable data files that can answer a user's question. Focus on actual data files (CSV, Excel, JSON) rather than web pages. Prefer government datasets, research databases and public data repositories that do not require registration.`

const planSearchUserPrompt = `User query: "%s"

Please suggest:
1. Effective search terms to find relevant data files
2. Types of data sources that might contain this information
3. Specific URLs of publicly available data files with relevant data, if you know any

Provide your response with clear sections for search terms, data sources and specific URLs.`

const findSourceSystemPrompt = `You identify the best data file to download for an analysis. Prefer files that are directly downloadable without registration, in a structured format (CSV, Excel, JSON), from reliable sources, and relevant to the query. Never invent URLs.`

const findSourceUserPrompt = `Search strategy:
%s

Web search results:
%s

List the URLs of candidate data files, best first, one URL per line, with no other text. Only list exact URLs that appear above or that you are certain exist. If there is no suitable file, reply with NONE.`

const describeAnalysisSystemPrompt = `You plan data analyses. Be specific about the analytical approach, the relevant columns and any data transformations needed.`

const describeAnalysisUserPrompt = `Original user query: "%s"

Data preview:
%s

Based on this data structure and the user's query, describe:
1. What specific calculations or analysis should be performed
2. Which columns are most relevant
3. What steps are needed to answer the question
4. What the expected output format should be`

const toolAnalysisSystemPrompt = `You are a data analyst with a code execution sandbox. Always answer by writing and running Python code against the provided data; never estimate results you can compute. Print every figure the answer depends on.`

const toolAnalysisUserPrompt = `User query: "%s"

Analysis plan:
%s

The dataset follows between <data> tags in %s format%s. Write it to a file in the sandbox, load it and carry out the analysis plan. Print the results.

<data>
%s
</data>`

const synthesizeSystemPrompt = `You write clear, accurate answers to data questions from computed analysis results. Use only figures present in the results and state any limitations of the data.`

const synthesizeUserPrompt = `User query: "%s"

Analysis results:
%s

Notes about the data:
%s

Write the final answer to the user's query.`

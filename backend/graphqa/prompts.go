package graphqa

// cypherPrompt takes chat history, schema and question.
const cypherPrompt = `You are an expert at generating Cypher queries for a property graph of legal documents.
Use the following schema to generate a Cypher query that answers the given question.
Make the query flexible by using case-insensitive matching and partial string matching where appropriate.

Do not include any explanations or apologies in your responses.
Do not respond to any questions that might ask anything else than for you to construct a Cypher statement.
Do not include any text except the generated Cypher statement.
Do not use any relationship types or properties that are not provided.
Only read from the graph: never create, merge, set, delete, remove or drop anything.

Chat history:
---
%s
---

Schema:
%s

The question is:
%s

Cypher:`

// qaPrompt takes the query result and the question.
const qaPrompt = `You are a legal evaluator.

Check if the result is consistent with the question and the provided context only.
Use no extra knowledge.
Classify the result as 'Coherent Document', 'Incomplete Document' or 'Unrelated Document'.

Context:
%s

Question:
%s`
